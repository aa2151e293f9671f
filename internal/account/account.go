package account

import "github.com/d60-Lab/fedtimeline/internal/model"

// Account 是会话层协作者。所有请求都是发出即返回，结果通过 Manager 投递的 Event 回到事件循环。
type Account interface {
	ID() string
	FetchTimeline(name, fromID string)
	FetchThread(postID string)
	FetchProfile(identityID, fromID string)
	Favorite(p *model.Post)
	Unfavorite(p *model.Post)
	Repeat(p *model.Post)
	Unrepeat(p *model.Post)
}

type EventKind int

const (
	EventAccountSelected EventKind = iota + 1
	EventInvalidated
	EventTimelineFetched
	EventThreadFetched
	EventProfileFetched
	EventStreaming
	EventActionFailed
)

func (k EventKind) String() string {
	switch k {
	case EventAccountSelected:
		return "account_selected"
	case EventInvalidated:
		return "invalidated"
	case EventTimelineFetched:
		return "timeline_fetched"
	case EventThreadFetched:
		return "thread_fetched"
	case EventProfileFetched:
		return "profile_fetched"
	case EventStreaming:
		return "streaming"
	case EventActionFailed:
		return "action_failed"
	}
	return "unknown"
}

type Action int

const (
	ActionFavorite Action = iota + 1
	ActionRepeat
)

// Event 从会话层投递给各个订阅的集合
type Event struct {
	Kind    EventKind
	Account Account

	// Timeline 为时间线名（home/public/federated）；Scope 为 thread 的 post id 或 profile 的 identity id
	Timeline string
	Scope    string
	Posts    []*model.Post
	Err      error

	// 流式事件
	StreamEvent string
	Payload     []byte

	// 失败的乐观操作：Value 是当初乐观写入的值
	Action Action
	PostID string
	Value  bool
}
