package model

import (
	"encoding/json"
	"errors"
	"time"
)

var ErrInvalidPost = errors.New("invalid post payload")

// Identity 作者信息，被 Post 引用而不归其所有
type Identity struct {
	ID          string `json:"id"`
	Acct        string `json:"acct"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Avatar      string `json:"avatar"`
	URL         string `json:"url"`
}

// Attachment 媒体附件
type Attachment struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	URL         string `json:"url"`
	PreviewURL  string `json:"preview_url"`
	Description string `json:"description"`
	Blurhash    string `json:"blurhash"`
}

type Mention struct {
	ID       string `json:"id"`
	Acct     string `json:"acct"`
	Username string `json:"username"`
	URL      string `json:"url"`
}

// Post 服务端下发的 status（字段与 Mastodon 线上格式一致）
type Post struct {
	ID               string       `json:"id"`
	Account          *Identity    `json:"account"`
	Content          string       `json:"content"`
	SpoilerText      string       `json:"spoiler_text"`
	CreatedAt        time.Time    `json:"created_at"`
	EditedAt         *time.Time   `json:"edited_at,omitempty"`
	URL              string       `json:"url"`
	Visibility       string       `json:"visibility"`
	Sensitive        bool         `json:"sensitive"`
	Favourited       bool         `json:"favourited"`
	Reblogged        bool         `json:"reblogged"`
	Pinned           bool         `json:"pinned"`
	RepliesCount     int          `json:"replies_count"`
	ReblogsCount     int          `json:"reblogs_count"`
	FavouritesCount  int          `json:"favourites_count"`
	Reblog           *Post        `json:"reblog,omitempty"`
	MediaAttachments []Attachment `json:"media_attachments"`
	Mentions         []Mention    `json:"mentions"`

	// 本地展示状态，不参与序列化
	AttachmentsVisible bool `json:"-"`
}

// DecodePost 解析单条 status；缺少 id 或作者视为无效
func DecodePost(data []byte) (*Post, error) {
	var p Post
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, errors.Join(ErrInvalidPost, err)
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	p.Normalize()
	return &p, nil
}

// DecodePosts 解析一页 status
func DecodePosts(data []byte) ([]*Post, error) {
	var ps []*Post
	if err := json.Unmarshal(data, &ps); err != nil {
		return nil, errors.Join(ErrInvalidPost, err)
	}
	for _, p := range ps {
		if p == nil {
			return nil, ErrInvalidPost
		}
		if err := p.validate(); err != nil {
			return nil, err
		}
		p.Normalize()
	}
	return ps, nil
}

func (p *Post) validate() error {
	if p.ID == "" || p.Account == nil {
		return ErrInvalidPost
	}
	if p.Reblog != nil {
		return p.Reblog.validate()
	}
	return nil
}

// Normalize 初始化本地状态：敏感内容的附件默认隐藏
func (p *Post) Normalize() {
	p.AttachmentsVisible = !p.Sensitive
	if p.Reblog != nil {
		p.Reblog.Normalize()
	}
}

// Display 返回实际展示的 status：转发时为被转发的原文
func (p *Post) Display() *Post {
	if p.Reblog != nil {
		return p.Reblog
	}
	return p
}

// Repeater 转发者；非转发返回 nil
func (p *Post) Repeater() *Identity {
	if p.Reblog == nil {
		return nil
	}
	return p.Account
}

// ReplaceWith 用新版本覆盖服务端字段，保留 id 与本地状态
func (p *Post) ReplaceWith(src *Post) {
	id, visible := p.ID, p.AttachmentsVisible
	*p = *src
	p.ID, p.AttachmentsVisible = id, visible
}

// ApplyEdit 仅更新可编辑的展示字段
func (p *Post) ApplyEdit(src *Post) {
	target, from := p.Display(), src.Display()
	target.Content = from.Content
	target.SpoilerText = from.SpoilerText
	target.MediaAttachments = from.MediaAttachments
	target.Sensitive = from.Sensitive
	target.EditedAt = from.EditedAt
}
