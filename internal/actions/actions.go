// Package actions runs stored actions (shell commands, AppleScript, sleeps,
// MIDI messages) as mapping targets. Actions are organized in a tree of
// groups; triggering a group runs everything below it in order.
package actions

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// ErrUnknownAction is returned for ids that name neither an action nor a group
var ErrUnknownAction = errors.New("unknown action")

// ActionType represents the type of action to execute
type ActionType string

const (
	ActionTypeAppleScript  ActionType = "applescript"
	ActionTypeShellCommand ActionType = "shell"
	ActionTypeSleep        ActionType = "sleep"
	ActionTypeMidi         ActionType = "midi"
)

// Action represents an executable action
type Action struct {
	ID                string     `json:"id" yaml:"id"`
	Name              string     `json:"name" yaml:"name"`
	Type              ActionType `json:"type" yaml:"type"`
	Code              string     `json:"code" yaml:"code"`
	ParentGroupID     string     `json:"parent_group_id" yaml:"parent_group_id"`         // Empty if root-level
	Order             int        `json:"order" yaml:"order"`                             // For sorting within parent
	WaitForCompletion bool       `json:"wait_for_completion" yaml:"wait_for_completion"` // Block next action until this one finishes
}

// ActionGroup is a named folder containing actions and other groups
type ActionGroup struct {
	ID            string `json:"id" yaml:"id"`
	Name          string `json:"name" yaml:"name"`
	ParentGroupID string `json:"parent_group_id" yaml:"parent_group_id"` // Allows nested groups, empty if root-level
	Order         int    `json:"order" yaml:"order"`                     // For sorting within parent
}

// NewAction creates a new action with a generated ID
func NewAction(name string, actionType ActionType) *Action {
	return &Action{
		ID:   uuid.New().String(),
		Name: name,
		Type: actionType,
	}
}

// NewActionGroup creates a new action group with a generated ID
func NewActionGroup(name string) *ActionGroup {
	return &ActionGroup{
		ID:   uuid.New().String(),
		Name: name,
	}
}

// ActionStore holds the action tree. It is safe for concurrent use: triggers
// read it on the control path while a reload may replace its content.
type ActionStore struct {
	mu      sync.RWMutex
	actions []Action
	groups  []ActionGroup
}

// NewActionStore creates a store with the given content
func NewActionStore(actions []Action, groups []ActionGroup) *ActionStore {
	s := &ActionStore{}
	s.Replace(actions, groups)
	return s
}

// Replace swaps the whole content, e.g. after a configuration reload
func (s *ActionStore) Replace(actions []Action, groups []ActionGroup) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actions = append([]Action(nil), actions...)
	s.groups = append([]ActionGroup(nil), groups...)
}

// Snapshot returns copies of the actions and groups, for saving
func (s *ActionStore) Snapshot() ([]Action, []ActionGroup) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Action{}, s.actions...), append([]ActionGroup{}, s.groups...)
}

// AddAction appends an action as the last child of its parent
func (s *ActionStore) AddAction(action *Action) {
	s.mu.Lock()
	defer s.mu.Unlock()
	action.Order = s.nextOrder(action.ParentGroupID)
	s.actions = append(s.actions, *action)
}

// AddGroup appends a group as the last child of its parent
func (s *ActionStore) AddGroup(group *ActionGroup) {
	s.mu.Lock()
	defer s.mu.Unlock()
	group.Order = s.nextOrder(group.ParentGroupID)
	s.groups = append(s.groups, *group)
}

func (s *ActionStore) nextOrder(parentID string) int {
	next := 0
	for _, a := range s.actions {
		if a.ParentGroupID == parentID && a.Order >= next {
			next = a.Order + 1
		}
	}
	for _, g := range s.groups {
		if g.ParentGroupID == parentID && g.Order >= next {
			next = g.Order + 1
		}
	}
	return next
}

// Name returns the name of the action or group with the given id
func (s *ActionStore) Name(id string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if a := s.action(id); a != nil {
		return a.Name, true
	}
	if g := s.group(id); g != nil {
		return g.Name, true
	}
	return "", false
}

func (s *ActionStore) action(id string) *Action {
	for i := range s.actions {
		if s.actions[i].ID == id {
			return &s.actions[i]
		}
	}
	return nil
}

func (s *ActionStore) group(id string) *ActionGroup {
	for i := range s.groups {
		if s.groups[i].ID == id {
			return &s.groups[i]
		}
	}
	return nil
}

// Remove deletes an action, or a group with everything below it. It
// reports whether id was found.
func (s *ActionStore) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.action(id) == nil && s.group(id) == nil {
		return false
	}
	doomed := map[string]bool{id: true}
	// parents may be listed after their children
	for grown := true; grown; {
		grown = false
		for _, g := range s.groups {
			if doomed[g.ParentGroupID] && !doomed[g.ID] {
				doomed[g.ID] = true
				grown = true
			}
		}
	}

	actions := s.actions[:0]
	for _, a := range s.actions {
		if !doomed[a.ID] && !doomed[a.ParentGroupID] {
			actions = append(actions, a)
		}
	}
	s.actions = actions
	groups := s.groups[:0]
	for _, g := range s.groups {
		if !doomed[g.ID] {
			groups = append(groups, g)
		}
	}
	s.groups = groups
	return true
}

// Check reports dangling parent references and group cycles
func (s *ActionStore) Check() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var errs []error
	for _, a := range s.actions {
		if a.ParentGroupID != "" && s.group(a.ParentGroupID) == nil {
			errs = append(errs, fmt.Errorf("action %q: unknown parent group %q", a.Name, a.ParentGroupID))
		}
	}
	for _, g := range s.groups {
		seen := map[string]bool{g.ID: true}
		for p := g.ParentGroupID; p != ""; {
			parent := s.group(p)
			if parent == nil {
				errs = append(errs, fmt.Errorf("group %q: unknown parent group %q", g.Name, p))
				break
			}
			if seen[parent.ID] {
				errs = append(errs, fmt.Errorf("group %q: cycle through %q", g.Name, parent.Name))
				break
			}
			seen[parent.ID] = true
			p = parent.ParentGroupID
		}
	}
	return errors.Join(errs...)
}

// Sequence returns the actions a target id stands for: the action itself, or
// every action in a group and its subgroups in tree order. Subgroups run
// before the actions of their parent, each sorted by Order.
func (s *ActionStore) Sequence(id string) ([]Action, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if a := s.action(id); a != nil {
		return []Action{*a}, nil
	}
	if s.group(id) == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, id)
	}
	return s.sequence(id, map[string]bool{}), nil
}

func (s *ActionStore) sequence(parentID string, visited map[string]bool) []Action {
	if visited[parentID] {
		return nil
	}
	visited[parentID] = true

	var groups []ActionGroup
	for _, g := range s.groups {
		if g.ParentGroupID == parentID {
			groups = append(groups, g)
		}
	}
	sort.SliceStable(groups, func(i, j int) bool { return groups[i].Order < groups[j].Order })

	var out []Action
	for _, g := range groups {
		out = append(out, s.sequence(g.ID, visited)...)
	}
	var own []Action
	for _, a := range s.actions {
		if a.ParentGroupID == parentID {
			own = append(own, a)
		}
	}
	sort.SliceStable(own, func(i, j int) bool { return own[i].Order < own[j].Order })
	return append(out, own...)
}
