package ledger

// SeedBalance is a test helper that sets a wallet balance directly when using
// the in-memory store.
func SeedBalance(s Store, walletID string, amount int64) {
	if mem, ok := s.(*MemoryStore); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		if slot, exists := mem.wallets[walletID]; exists {
			slot.w.BalanceCents = amount
		}
	}
}

// FailAppends makes every AppendTransaction on the in-memory store return err
// until cleared with a nil err. Used to verify rollback behavior.
func FailAppends(s Store, err error) {
	if mem, ok := s.(*MemoryStore); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		mem.appendErr = err
	}
}
