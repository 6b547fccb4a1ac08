package ledger

// Role restricts a history filter to records where the owner's wallets appear
// on a particular side.
type Role int

const (
	RoleAny Role = iota
	RoleSender
	RoleReceiver
)

// HistoryFilter narrows a history query. The zero value matches everything.
type HistoryFilter struct {
	Type Type
	Role Role
}

// ParseHistoryFilter interprets the caller-supplied type filter. "sent" and
// "received" select transfers where the owner is on the sending or receiving
// side; literal type names match exactly; anything unrecognized means no
// filter rather than an error.
func ParseHistoryFilter(s string) HistoryFilter {
	switch s {
	case "sent":
		return HistoryFilter{Type: TypeTransfer, Role: RoleSender}
	case "received":
		return HistoryFilter{Type: TypeTransfer, Role: RoleReceiver}
	case string(TypeDeposit), string(TypeWithdrawal), string(TypeTransfer), string(TypeConversion):
		return HistoryFilter{Type: Type(s)}
	default:
		return HistoryFilter{}
	}
}
