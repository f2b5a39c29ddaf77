package achievement

import "fmt"

// Rarity is the cosmetic tier of a badge
type Rarity string

const (
	RarityCommon    Rarity = "common"
	RarityUncommon  Rarity = "uncommon"
	RarityRare      Rarity = "rare"
	RarityEpic      Rarity = "epic"
	RarityLegendary Rarity = "legendary"
)

// Metric names the counter a badge threshold is checked against
type Metric int

const (
	MetricNone Metric = iota
	MetricPosts
	MetricSubscribers
	MetricSubscribed
	MetricLikesReceived
	MetricComments
	MetricShared
	MetricWatched
	MetricLiked
	MetricJoinedEarly
	MetricDaysActive
	// MetricBadgesEarned counts the other earned badges; badges using it are
	// evaluated after every counter-based badge.
	MetricBadgesEarned
)

var metricNames = map[Metric]string{
	MetricNone:          "none",
	MetricPosts:         "posts",
	MetricSubscribers:   "subscribers",
	MetricSubscribed:    "subscribed",
	MetricLikesReceived: "likesReceived",
	MetricComments:      "comments",
	MetricShared:        "shared",
	MetricWatched:       "watched",
	MetricLiked:         "liked",
	MetricJoinedEarly:   "joinedEarly",
	MetricDaysActive:    "daysActive",
	MetricBadgesEarned:  "badgesEarned",
}

func (m Metric) String() string {
	if s, ok := metricNames[m]; ok {
		return s
	}
	return fmt.Sprintf("metric(%d)", int(m))
}

// MarshalText renders the metric by name in JSON output
func (m Metric) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// Badge is one catalog entry. Earned and progress are derived from Metric and
// Threshold, so both always agree on the counter they read.
type Badge struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	Rarity      Rarity `json:"rarity"`
	Points      int    `json:"points"`
	Metric      Metric `json:"metric"`
	Threshold   int    `json:"threshold"`
}

func (b Badge) dependent() bool {
	return b.Metric == MetricBadgesEarned
}

// actual returns the counter value the badge is measured against. otherEarned
// is only read by dependent badges.
func (b Badge) actual(c Counters, otherEarned int) int {
	switch b.Metric {
	case MetricPosts:
		return c.Posts
	case MetricSubscribers:
		return c.Subscribers
	case MetricSubscribed:
		return c.Subscribed
	case MetricLikesReceived:
		return c.LikesReceived
	case MetricComments:
		return c.Comments
	case MetricShared:
		return c.Shared
	case MetricWatched:
		return c.Watched
	case MetricLiked:
		return c.Liked
	case MetricDaysActive:
		return c.DaysActive
	case MetricJoinedEarly:
		if c.JoinedEarly {
			return 1
		}
		return 0
	case MetricBadgesEarned:
		return otherEarned
	}
	return 0
}

func (b Badge) met(c Counters, otherEarned int) bool {
	if b.Metric == MetricNone || b.Threshold <= 0 {
		return false
	}
	return b.actual(c, otherEarned) >= b.Threshold
}

var catalog = []Badge{
	{ID: "first_post", Name: "First Post", Description: "Published your first post", Icon: "pencil", Rarity: RarityCommon, Points: 10, Metric: MetricPosts, Threshold: 1},
	{ID: "content_creator", Name: "Content Creator", Description: "Published 10 posts", Icon: "camera", Rarity: RarityUncommon, Points: 25, Metric: MetricPosts, Threshold: 10},
	{ID: "prolific_creator", Name: "Prolific Creator", Description: "Published 100 posts", Icon: "layers", Rarity: RarityEpic, Points: 100, Metric: MetricPosts, Threshold: 100},
	{ID: "popular", Name: "Popular", Description: "Reached 100 subscribers", Icon: "users", Rarity: RarityRare, Points: 75, Metric: MetricSubscribers, Threshold: 100},
	{ID: "influencer", Name: "Influencer", Description: "Reached 1,000 subscribers", Icon: "megaphone", Rarity: RarityEpic, Points: 150, Metric: MetricSubscribers, Threshold: 1000},
	{ID: "celebrity", Name: "Celebrity", Description: "Reached 10,000 subscribers", Icon: "star", Rarity: RarityLegendary, Points: 300, Metric: MetricSubscribers, Threshold: 10000},
	{ID: "social_butterfly", Name: "Social Butterfly", Description: "Subscribed to 50 creators", Icon: "user-plus", Rarity: RarityUncommon, Points: 20, Metric: MetricSubscribed, Threshold: 50},
	{ID: "well_liked", Name: "Well Liked", Description: "Received 100 likes on your posts", Icon: "heart", Rarity: RarityRare, Points: 50, Metric: MetricLikesReceived, Threshold: 100},
	{ID: "commentator", Name: "Commentator", Description: "Wrote 50 comments", Icon: "message-circle", Rarity: RarityUncommon, Points: 20, Metric: MetricComments, Threshold: 50},
	{ID: "sharer", Name: "Sharer", Description: "Shared 25 posts", Icon: "share", Rarity: RarityUncommon, Points: 20, Metric: MetricShared, Threshold: 25},
	{ID: "binge_watcher", Name: "Binge Watcher", Description: "Watched 100 reels", Icon: "play", Rarity: RarityUncommon, Points: 20, Metric: MetricWatched, Threshold: 100},
	{ID: "supporter", Name: "Supporter", Description: "Liked 100 posts", Icon: "thumbs-up", Rarity: RarityCommon, Points: 15, Metric: MetricLiked, Threshold: 100},
	{ID: "early_adopter", Name: "Early Adopter", Description: "Joined during the early access period", Icon: "zap", Rarity: RarityLegendary, Points: 200, Metric: MetricJoinedEarly, Threshold: 1},
	{ID: "dedicated", Name: "Dedicated", Description: "Active for 30 days", Icon: "calendar", Rarity: RarityRare, Points: 50, Metric: MetricDaysActive, Threshold: 30},
	{ID: "veteran", Name: "Veteran", Description: "Active for a full year", Icon: "shield", Rarity: RarityEpic, Points: 150, Metric: MetricDaysActive, Threshold: 365},
	{ID: "champion", Name: "Champion", Description: "Earned 5 other badges", Icon: "trophy", Rarity: RarityLegendary, Points: 250, Metric: MetricBadgesEarned, Threshold: 5},
}

// Catalog returns a copy of the badge catalog in display order
func Catalog() []Badge {
	out := make([]Badge, len(catalog))
	copy(out, catalog)
	return out
}

// Lookup finds a catalog badge by id
func Lookup(id string) (Badge, bool) {
	for _, b := range catalog {
		if b.ID == id {
			return b, true
		}
	}
	return Badge{}, false
}
