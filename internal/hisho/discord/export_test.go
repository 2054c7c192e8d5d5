package discord

// SetSync makes command processing synchronous so tests can assert on the
// recorded session calls right after ServeHTTP returns.
func SetSync(h *Handler) { h.wait = true }
