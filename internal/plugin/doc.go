// Package plugin defines the declarative contract between the component
// runtime and the plugins it hosts.
//
// A plugin is described by Metadata: the state members it publishes, the
// action members it accepts and the configuration items a component must
// supply. The behaviour behind the contract is opaque to the runtime and is
// produced by a Factory when a component is instantiated.
//
// Plugins are registered explicitly by a loader before any component that
// references them is created:
//
//	catalog := plugin.NewCatalog()
//	err := catalog.Register("runtime-01", &plugin.Metadata{
//	    Module: "core",
//	    Name:   "variable-float",
//	    Members: []plugin.Member{
//	        {Name: "value", Type: plugin.MemberState, ValueType: plugin.ValueFloat},
//	        {Name: "set", Type: plugin.MemberAction, ValueType: plugin.ValueFloat},
//	    },
//	    Factory: newVariable,
//	})
//
// Value types form a small closed set shared by state members, action
// members and configuration items. Bindings compare them by name.
package plugin
