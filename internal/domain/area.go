package domain

import "time"

// AreaStatement proposes a tag set for a poll during the area_vote phase
// and accumulates yes/no votes. The winning statement's most-voted tag
// becomes the poll's tag.
type AreaStatement struct {
	ID        int64          `json:"id"`
	PollID    int64          `json:"poll_id"`
	AuthorID  int64          `json:"author_id"`
	Tags      []string       `json:"tags"`
	TagVotes  map[string]int `json:"tag_votes"`
	Yes       int            `json:"yes"`
	No        int            `json:"no"`
	CreatedAt time.Time      `json:"created_at"`
}

// Margin is the statement's yes minus no vote count
func (s *AreaStatement) Margin() int {
	return s.Yes - s.No
}
