// Package builtin provides the generic plugins every runtime instance ships.
//
// Plugins:
//   - core/variable-bool, core/variable-string, core/variable-integer,
//     core/variable-float: hold one value. The "value" state starts at the
//     optional "initial" config item and changes through the "set" action.
//   - core/ticker: counts ticks on a fixed interval while enabled. It runs
//     its own goroutine and publishes through StateSink.Post.
//
// Usage:
//
//	catalog := plugin.NewCatalog()
//	if err := builtin.Register(catalog, cfg.Instance.ID); err != nil { ... }
package builtin
