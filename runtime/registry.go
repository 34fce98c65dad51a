package runtime

import (
	"sync"

	"talk-hub/contract"
)

type Set map[string]struct{}

// Registry owns group membership. Connections hold only their own id;
// all shared membership state lives here behind the mutex.
type Registry struct {
	mu           sync.RWMutex
	sessions     map[string]contract.EventSink // connection id -> live sink
	groupMembers map[string]Set                // group id -> connection ids
	memberGroups map[string]Set                // connection id -> group ids, for UnsubscribeAll
}

func NewRegistry() *Registry {
	return &Registry{
		sessions:     make(map[string]contract.EventSink),
		groupMembers: make(map[string]Set),
		memberGroups: make(map[string]Set),
	}
}

// SinksFor retrieves all active communication channels for one group.
// It performs a two-step lookup:
// 1. Identifies connection ids associated with the group via groupMembers.
// 2. Resolves those ids into actual EventSinks using the sessions map.
//
// This decoupled approach ensures that even if a connection is in multiple
// groups, its sink is managed in a single place.
// Returns nil if the group doesn't exist or has no members, so broadcasting
// to an unknown group is a harmless no-op.
func (r *Registry) SinksFor(groupID string) []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, ok := r.groupMembers[groupID]
	if !ok {
		return nil
	}
	var activeSinks []contract.EventSink
	for connID := range members {
		if sink, exists := r.sessions[connID]; exists {
			activeSinks = append(activeSinks, sink)
		}
	}
	return activeSinks
}

// Members returns the connection ids currently joined to a group.
func (r *Registry) Members(groupID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := make([]string, 0, len(r.groupMembers[groupID]))
	for connID := range r.groupMembers[groupID] {
		members = append(members, connID)
	}
	return members
}

// Counts reports live sessions and non-empty groups, for telemetry.
func (r *Registry) Counts() (sessions, groups int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions), len(r.groupMembers)
}

// Subscribe registers a connection's sink and adds it to a group.
// Creating the group on the fly makes joins idempotent and keeps
// ensure-group semantics in one place. Joining twice has no extra effect.
func (r *Registry) Subscribe(connID string, groupID string, sink contract.EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[connID] = sink

	if _, ok := r.groupMembers[groupID]; !ok {
		r.groupMembers[groupID] = make(Set)
	}
	r.groupMembers[groupID][connID] = struct{}{}

	if _, ok := r.memberGroups[connID]; !ok {
		r.memberGroups[connID] = make(Set)
	}
	r.memberGroups[connID][groupID] = struct{}{}
}

// Unsubscribe removes a connection from one group. Empty sets are pruned
// to prevent the maps from growing over the process lifetime.
func (r *Registry) Unsubscribe(connID string, groupID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.removeMembership(connID, groupID)

	if groups, ok := r.memberGroups[connID]; ok {
		delete(groups, groupID)
		if len(groups) == 0 {
			delete(r.memberGroups, connID)
			delete(r.sessions, connID)
		}
	}
}

// UnsubscribeAll removes a connection from every group it had joined and
// drops its session. Called on disconnect; calling it again is a no-op.
func (r *Registry) UnsubscribeAll(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for groupID := range r.memberGroups[connID] {
		r.removeMembership(connID, groupID)
	}
	delete(r.memberGroups, connID)
	delete(r.sessions, connID)
}

// removeMembership must be called with the write lock held.
func (r *Registry) removeMembership(connID string, groupID string) {
	if members, ok := r.groupMembers[groupID]; ok {
		delete(members, connID)

		// If no one is left in the group, remove the membership entry entirely
		if len(members) == 0 {
			delete(r.groupMembers, groupID)
		}
	}
}
