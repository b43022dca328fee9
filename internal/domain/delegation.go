package domain

// Member is a group member as the engine sees it. Inactive members
// contribute no mandates and may not vote.
type Member struct {
	ID        int64 `json:"id"`
	GroupID   int64 `json:"group_id"`
	Active    bool  `json:"active"`
	VoteRight bool  `json:"vote_right"`
}

// DelegatePool is a named voting entity staffed by delegates. Pools are
// not group members themselves, so delegation edges cannot form cycles.
type DelegatePool struct {
	ID          int64   `json:"id"`
	GroupID     int64   `json:"group_id"`
	DelegateIDs []int64 `json:"delegate_ids"`
}

// Delegation is an edge from a delegator to a pool, scoped to a tag set.
// A delegator subscribes to at most one pool per tag.
type Delegation struct {
	DelegatorID int64    `json:"delegator_id"`
	PoolID      int64    `json:"pool_id"`
	Tags        []string `json:"tags"`
	Active      bool     `json:"active"`
}

// Covers reports whether the delegation includes the given tag
func (d *Delegation) Covers(tag string) bool {
	for _, t := range d.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// PoolMandate is one row of a batched mandate write
type PoolMandate struct {
	PoolID  int64 `json:"pool_id"`
	Mandate int   `json:"mandate"`
}
