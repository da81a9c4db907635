package messaging

// CanRead reports whether caller may read m: only its sender or recipient.
func CanRead(caller string, m Message) bool {
	return caller != "" && (caller == m.FromUsername || caller == m.ToUsername)
}

// CanMarkRead reports whether caller may acknowledge m: only its recipient.
func CanMarkRead(caller string, m Message) bool {
	return caller != "" && caller == m.ToUsername
}

// CanViewMailbox reports whether caller may list owner's sent or received messages.
func CanViewMailbox(caller, owner string) bool {
	return caller != "" && caller == owner
}
