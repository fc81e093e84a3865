package domain

// GetBase exposes the embedded Base through a pointer so store code can stamp
// identity and timestamps generically.
func (b *Base) GetBase() *Base { return b }
