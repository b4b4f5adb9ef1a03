package lotto

import "fmt"

// Secondary index keys. Zero-padded numbers keep ListIndex ordering stable.

func calcRoundTicketPrefix(roundAddr string) string {
	return fmt.Sprintf("ticket-round:%s:", roundAddr)
}

func calcRoundTicketKey(roundAddr string, ticketNumber uint64) string {
	return fmt.Sprintf("ticket-round:%s:%012d", roundAddr, ticketNumber)
}

func calcUserTicketPrefix(accountAddr, roundAddr string) string {
	return fmt.Sprintf("ticket-user:%s:%s:", accountAddr, roundAddr)
}

func calcUserTicketKey(accountAddr string, roundAddr string, ticketNumber uint64) string {
	return fmt.Sprintf("ticket-user:%s:%s:%012d", accountAddr, roundAddr, ticketNumber)
}

func calcEventPrefix(authority string) string {
	return fmt.Sprintf("event:%s:", authority)
}

func calcEventKey(authority string, seq uint64) string {
	return fmt.Sprintf("event:%s:%020d", authority, seq)
}
