package timeline

import (
	"errors"

	"github.com/d60-Lab/fedtimeline/internal/model"
)

var (
	ErrRowOutOfRange = errors.New("row out of range")
	ErrUnknownRole   = errors.New("unknown role")
)

// Role identifies one field of a row.
type Role int

const (
	RoleID Role = iota
	RoleContent
	RoleAvatar
	RoleAuthorDisplayName
	RoleAuthorID
	RolePinned
	RolePublishedAt
	RoleMentions
	RoleRelativeTime
	RoleSensitive
	RoleSpoilerText
	RoleReblogged
	RoleWasReblogged
	RoleRebloggedDisplayName
	RoleRebloggedID
	RoleAttachments
	RoleReblogsCount
	RoleRepliesCount
	RoleFavorited
	RoleFavoritesCount
	RoleURL
	RoleAttachmentsVisible
	RoleThreadModel
	RoleAccountModel
	roleCount
)

var roleNames = [roleCount]string{
	RoleID:                   "id",
	RoleContent:              "display",
	RoleAvatar:               "avatar",
	RoleAuthorDisplayName:    "authorDisplayName",
	RoleAuthorID:             "authorId",
	RolePinned:               "pinned",
	RolePublishedAt:          "publishedAt",
	RoleMentions:             "mentions",
	RoleRelativeTime:         "relativeTime",
	RoleSensitive:            "sensitive",
	RoleSpoilerText:          "spoilerText",
	RoleReblogged:            "reblogged",
	RoleWasReblogged:         "wasReblogged",
	RoleRebloggedDisplayName: "rebloggedDisplayName",
	RoleRebloggedID:          "rebloggedId",
	RoleAttachments:          "attachments",
	RoleReblogsCount:         "reblogsCount",
	RoleRepliesCount:         "repliesCount",
	RoleFavorited:            "favorite",
	RoleFavoritesCount:       "favoritesCount",
	RoleURL:                  "url",
	RoleAttachmentsVisible:   "attachmentsVisible",
	RoleThreadModel:          "threadModel",
	RoleAccountModel:         "accountModel",
}

func (r Role) String() string {
	if r < 0 || r >= roleCount {
		return "unknown"
	}
	return roleNames[r]
}

func ParseRole(name string) (Role, bool) {
	for r, n := range roleNames {
		if n == name {
			return Role(r), true
		}
	}
	return 0, false
}

// FieldRoles are the roles that read plain values. The model roles are
// excluded because every access builds a new collection.
func FieldRoles() []Role {
	roles := make([]Role, 0, roleCount)
	for r := Role(0); r < roleCount; r++ {
		if r == RoleThreadModel || r == RoleAccountModel {
			continue
		}
		roles = append(roles, r)
	}
	return roles
}

type accessor func(c *collection, p *model.Post) any

var accessors = [roleCount]accessor{
	RoleID:      func(_ *collection, p *model.Post) any { return p.ID },
	RoleContent: func(_ *collection, p *model.Post) any { return p.Display().Content },
	RoleAvatar: func(_ *collection, p *model.Post) any {
		return author(p).Avatar
	},
	RoleAuthorDisplayName: func(_ *collection, p *model.Post) any {
		return author(p).DisplayName
	},
	RoleAuthorID: func(_ *collection, p *model.Post) any { return author(p).Acct },
	RolePinned:   func(_ *collection, p *model.Post) any { return p.Pinned },
	RolePublishedAt: func(_ *collection, p *model.Post) any {
		return p.Display().CreatedAt
	},
	RoleMentions: func(_ *collection, p *model.Post) any {
		mentions := p.Display().Mentions
		out := make([]string, 0, len(mentions))
		for _, m := range mentions {
			out = append(out, "@"+m.Acct)
		}
		return out
	},
	RoleRelativeTime: func(c *collection, p *model.Post) any {
		return RelativeTime(p.Display().CreatedAt, c.opts.clock.Now(), c.opts.dateLayout)
	},
	RoleSensitive:   func(_ *collection, p *model.Post) any { return p.Display().Sensitive },
	RoleSpoilerText: func(_ *collection, p *model.Post) any { return p.Display().SpoilerText },
	RoleReblogged:   func(_ *collection, p *model.Post) any { return p.Display().Reblogged },
	RoleWasReblogged: func(_ *collection, p *model.Post) any {
		return p.Reblog != nil
	},
	RoleRebloggedDisplayName: func(_ *collection, p *model.Post) any {
		if r := p.Repeater(); r != nil {
			return r.DisplayName
		}
		return nil
	},
	RoleRebloggedID: func(_ *collection, p *model.Post) any {
		if r := p.Repeater(); r != nil {
			return r.Acct
		}
		return nil
	},
	RoleAttachments: func(_ *collection, p *model.Post) any {
		return p.Display().MediaAttachments
	},
	RoleReblogsCount:   func(_ *collection, p *model.Post) any { return p.Display().ReblogsCount },
	RoleRepliesCount:   func(_ *collection, p *model.Post) any { return p.Display().RepliesCount },
	RoleFavorited:      func(_ *collection, p *model.Post) any { return p.Display().Favourited },
	RoleFavoritesCount: func(_ *collection, p *model.Post) any { return p.Display().FavouritesCount },
	RoleURL:            func(_ *collection, p *model.Post) any { return p.Display().URL },
	RoleAttachmentsVisible: func(_ *collection, p *model.Post) any {
		return p.Display().AttachmentsVisible
	},
	RoleThreadModel: func(c *collection, p *model.Post) any {
		th := newThread(p.Display().ID, c.opts)
		if c.manager != nil {
			th.Attach(c.manager)
		}
		return th
	},
	RoleAccountModel: func(c *collection, p *model.Post) any {
		a := author(p)
		pr := newProfile(a.ID, a.Acct, c.opts)
		if c.manager != nil {
			pr.Attach(c.manager)
		}
		return pr
	},
}

var noIdentity = &model.Identity{}

func author(p *model.Post) *model.Identity {
	if a := p.Display().Account; a != nil {
		return a
	}
	return noIdentity
}
