package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"slices"

	"github.com/nerrad567/gray-logic-runtime/internal/binding"
	"github.com/nerrad567/gray-logic-runtime/internal/component"
	"github.com/nerrad567/gray-logic-runtime/internal/plugin"
)

// Procedure names.
const (
	MethodComponentsAdd     = "components.add"
	MethodComponentsRemove  = "components.remove"
	MethodComponentsList    = "components.list"
	MethodComponentsStatus  = "components.status"
	MethodComponentsExecute = "components.execute"
	MethodBindingsAdd       = "bindings.add"
	MethodBindingsRemove    = "bindings.remove"
	MethodBindingsList      = "bindings.list"
	MethodBindingsStatus    = "bindings.status"
	MethodPluginsList       = "plugins.list"
	MethodStoreSave         = "store.save"
)

// Manager is the subset of manager.Manager the procedures call.
type Manager interface {
	BindingsEnabled() bool
	AddComponent(ctx context.Context, cfg component.Config) (component.Info, error)
	RemoveComponent(ctx context.Context, id string) error
	Components() []component.Config
	LiveComponents(ctx context.Context) ([]component.Info, error)
	ExecuteAction(ctx context.Context, id, action string, value any) error
	AddBinding(ctx context.Context, cfg binding.Config) (binding.Status, error)
	RemoveBinding(ctx context.Context, cfg binding.Config) error
	Bindings() []binding.Config
	BindingStatuses(ctx context.Context) ([]binding.Status, error)
	Plugins() []plugin.Info
	Save(ctx context.Context) error
}

// Handler executes one procedure.
type Handler func(ctx context.Context, params json.RawMessage) (any, error)

// OK is the result of procedures that return nothing else.
type OK struct {
	OK bool `json:"ok"`
}

// ComponentRef names a component.
type ComponentRef struct {
	ID string `json:"id"`
}

// ExecuteParams are the parameters of components.execute.
type ExecuteParams struct {
	ID     string `json:"id"`
	Action string `json:"action"`
	Value  any    `json:"value"`
}

// Server is the procedure table of one runtime instance.
//
// Thread Safety:
//   - Call is safe for concurrent use; the manager serialises the work.
type Server struct {
	manager    Manager
	procedures map[string]Handler
}

// NewServer builds the procedure table for m. bindings.add is registered
// only when binding support is enabled.
func NewServer(m Manager) *Server {
	s := &Server{
		manager:    m,
		procedures: make(map[string]Handler),
	}

	s.procedures[MethodComponentsAdd] = s.componentsAdd
	s.procedures[MethodComponentsRemove] = s.componentsRemove
	s.procedures[MethodComponentsList] = s.componentsList
	s.procedures[MethodComponentsStatus] = s.componentsStatus
	s.procedures[MethodComponentsExecute] = s.componentsExecute
	if m.BindingsEnabled() {
		s.procedures[MethodBindingsAdd] = s.bindingsAdd
	}
	s.procedures[MethodBindingsRemove] = s.bindingsRemove
	s.procedures[MethodBindingsList] = s.bindingsList
	s.procedures[MethodBindingsStatus] = s.bindingsStatus
	s.procedures[MethodPluginsList] = s.pluginsList
	s.procedures[MethodStoreSave] = s.storeSave
	return s
}

// Methods returns the registered procedure names, sorted.
func (s *Server) Methods() []string {
	return slices.Sorted(maps.Keys(s.procedures))
}

// Call runs the procedure named method.
//
// Returns:
//   - ErrUnknownMethod if method is not registered
//   - ErrInvalidParams if params do not decode
//   - the manager's error otherwise
func (s *Server) Call(ctx context.Context, method string, params json.RawMessage) (any, error) {
	h, ok := s.procedures[method]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMethod, method)
	}
	return h(ctx, params)
}

func (s *Server) componentsAdd(ctx context.Context, params json.RawMessage) (any, error) {
	var cfg component.Config
	if err := decodeParams(params, &cfg); err != nil {
		return nil, err
	}
	return s.manager.AddComponent(ctx, cfg)
}

func (s *Server) componentsRemove(ctx context.Context, params json.RawMessage) (any, error) {
	var ref ComponentRef
	if err := decodeParams(params, &ref); err != nil {
		return nil, err
	}
	if err := s.manager.RemoveComponent(ctx, ref.ID); err != nil {
		return nil, err
	}
	return OK{OK: true}, nil
}

func (s *Server) componentsList(context.Context, json.RawMessage) (any, error) {
	return s.manager.Components(), nil
}

func (s *Server) componentsStatus(ctx context.Context, _ json.RawMessage) (any, error) {
	return s.manager.LiveComponents(ctx)
}

func (s *Server) componentsExecute(ctx context.Context, params json.RawMessage) (any, error) {
	var p ExecuteParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if err := s.manager.ExecuteAction(ctx, p.ID, p.Action, p.Value); err != nil {
		return nil, err
	}
	return OK{OK: true}, nil
}

func (s *Server) bindingsAdd(ctx context.Context, params json.RawMessage) (any, error) {
	var cfg binding.Config
	if err := decodeParams(params, &cfg); err != nil {
		return nil, err
	}
	return s.manager.AddBinding(ctx, cfg)
}

func (s *Server) bindingsRemove(ctx context.Context, params json.RawMessage) (any, error) {
	var cfg binding.Config
	if err := decodeParams(params, &cfg); err != nil {
		return nil, err
	}
	if err := s.manager.RemoveBinding(ctx, cfg); err != nil {
		return nil, err
	}
	return OK{OK: true}, nil
}

func (s *Server) bindingsList(context.Context, json.RawMessage) (any, error) {
	return s.manager.Bindings(), nil
}

func (s *Server) bindingsStatus(ctx context.Context, _ json.RawMessage) (any, error) {
	return s.manager.BindingStatuses(ctx)
}

func (s *Server) pluginsList(context.Context, json.RawMessage) (any, error) {
	return s.manager.Plugins(), nil
}

func (s *Server) storeSave(ctx context.Context, _ json.RawMessage) (any, error) {
	if err := s.manager.Save(ctx); err != nil {
		return nil, err
	}
	return OK{OK: true}, nil
}

// decodeParams strictly decodes params into v. Missing params decode as
// an empty object.
func decodeParams(params json.RawMessage, v any) error {
	if len(params) == 0 || string(params) == "null" {
		params = json.RawMessage("{}")
	}
	dec := json.NewDecoder(bytes.NewReader(params))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidParams, err)
	}
	return nil
}
