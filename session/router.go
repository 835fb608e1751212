package session

// NopRouter is a dcb.Router that does nothing, for tests and examples
// that don't need real routing-layer teardown but still want to
// exercise the ConsumeAndCloseRouterSession protocol (spec §4.7 step 4).
type NopRouter struct{}

func (NopRouter) CloseSession(routerInstance, routerSession any) {}
