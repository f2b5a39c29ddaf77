package achievement

import "github.com/creatorhub/sessiond/internal/model"

// Counters is the fully defaulted activity snapshot every predicate and
// progress function reads. Absent lists count as empty, absent numbers as 0.
type Counters struct {
	Posts         int  `json:"posts"`
	Subscribers   int  `json:"subscribers"`
	Subscribed    int  `json:"subscribed"`
	LikesReceived int  `json:"likesReceived"`
	Comments      int  `json:"comments"`
	Shared        int  `json:"shared"`
	Liked         int  `json:"liked"`
	Watched       int  `json:"watched"`
	DaysActive    int  `json:"daysActive"`
	JoinedEarly   bool `json:"joinedEarly"`
}

// Normalize converts a user snapshot, possibly nil, into Counters
func Normalize(u *model.User) Counters {
	if u == nil {
		return Counters{}
	}

	likes := 0
	for _, p := range u.Posts {
		likes += p.Likes.Len()
	}

	days := u.DaysActive
	if days < 0 {
		days = 0
	}

	return Counters{
		Posts:         len(u.Posts),
		Subscribers:   u.Subscriber.Len(),
		Subscribed:    u.Subscribed.Len(),
		LikesReceived: likes,
		Comments:      u.Comments.Len(),
		Shared:        u.Shared.Len(),
		Liked:         u.Liked.Len(),
		Watched:       u.Watched.Len(),
		DaysActive:    days,
		JoinedEarly:   u.JoinedEarly,
	}
}
