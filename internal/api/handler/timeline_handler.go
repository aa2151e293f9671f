package handler

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/fedtimeline/internal/account"
	"github.com/d60-Lab/fedtimeline/internal/model"
	"github.com/d60-Lab/fedtimeline/internal/timeline"
	"github.com/d60-Lab/fedtimeline/pkg/response"
)

var errCannotFetch = errors.New("timeline cannot fetch more right now")

const maxPageSize = 100

// TimelineInfo 时间线概要
type TimelineInfo struct {
	Name         string `json:"name"`
	DisplayName  string `json:"display_name"`
	Rows         int    `json:"rows"`
	Fetching     bool   `json:"fetching"`
	AtEnd        bool   `json:"at_end"`
	CanFetchMore bool   `json:"can_fetch_more"`
}

func info(tl *timeline.Timeline) TimelineInfo {
	return TimelineInfo{
		Name:         tl.Name(),
		DisplayName:  tl.DisplayName(),
		Rows:         tl.RowCount(),
		Fetching:     tl.Fetching(),
		AtEnd:        tl.AtEnd(),
		CanFetchMore: tl.CanFetchMore(),
	}
}

// rowSource 时间线与详情共用的行接口
type rowSource interface {
	RowCount() int
	Data(row int, role timeline.Role) (any, error)
}

// project 按角色名导出一段行
func project(src rowSource, offset, limit int, roles []timeline.Role) ([]map[string]any, error) {
	if offset < 0 {
		offset = 0
	}
	end := offset + limit
	if end > src.RowCount() {
		end = src.RowCount()
	}
	rows := make([]map[string]any, 0, max(end-offset, 0))
	for r := offset; r < end; r++ {
		row := make(map[string]any, len(roles))
		for _, role := range roles {
			v, err := src.Data(r, role)
			if err != nil {
				return nil, err
			}
			row[role.String()] = v
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// parseRoles 解析 roles=a,b,c；为空时导出全部字段角色
func parseRoles(raw string) ([]timeline.Role, error) {
	if raw == "" {
		return timeline.FieldRoles(), nil
	}
	var roles []timeline.Role
	for _, name := range strings.Split(raw, ",") {
		role, ok := timeline.ParseRole(strings.TrimSpace(name))
		if !ok || role == timeline.RoleThreadModel || role == timeline.RoleAccountModel {
			return nil, timeline.ErrUnknownRole
		}
		roles = append(roles, role)
	}
	return roles, nil
}

func pageParams(c *gin.Context) (int, int) {
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if limit <= 0 || limit > maxPageSize {
		limit = 20
	}
	return offset, limit
}

// ListTimelines 时间线列表
// @Summary 时间线列表
// @Tags 时间线
// @Produce json
// @Success 200 {object} response.Response{data=[]TimelineInfo}
// @Router /api/v1/timelines [get]
func (h *Handler) ListTimelines(c *gin.Context) {
	var out []TimelineInfo
	err := h.onLoop(c.Request.Context(), func() error {
		for _, name := range h.order {
			out = append(out, info(h.timelines[name]))
		}
		return nil
	})
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, out)
}

// Rows 读取一段行
// @Summary 读取时间线行
// @Tags 时间线
// @Produce json
// @Param name path string true "时间线名称" Enums(home, public, federated)
// @Param offset query int false "起始行" default(0)
// @Param limit query int false "行数" default(20)
// @Param roles query string false "逗号分隔的角色名"
// @Success 200 {object} response.Response{data=map[string]interface{}}
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/timelines/{name}/rows [get]
func (h *Handler) Rows(c *gin.Context) {
	tl, ok := h.timeline(c)
	if !ok {
		return
	}
	roles, err := parseRoles(c.Query("roles"))
	if err != nil {
		fail(c, err)
		return
	}
	offset, limit := pageParams(c)
	var (
		rows []map[string]any
		meta TimelineInfo
	)
	err = h.onLoop(c.Request.Context(), func() error {
		meta = info(tl)
		var err error
		rows, err = project(tl, offset, limit, roles)
		return err
	})
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, gin.H{"timeline": meta, "offset": offset, "rows": rows})
}

// FetchMore 请求更旧的一页
// @Summary 加载更多
// @Tags 时间线
// @Produce json
// @Param name path string true "时间线名称"
// @Success 200 {object} response.Response{data=TimelineInfo}
// @Failure 409 {object} response.Response
// @Router /api/v1/timelines/{name}/fetch-more [post]
func (h *Handler) FetchMore(c *gin.Context) {
	tl, ok := h.timeline(c)
	if !ok {
		return
	}
	var meta TimelineInfo
	err := h.onLoop(c.Request.Context(), func() error {
		if !tl.CanFetchMore() {
			return errCannotFetch
		}
		tl.FetchMore()
		meta = info(tl)
		return nil
	})
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, meta)
}

// Refresh 清空并重新拉取最新一页
// @Summary 刷新时间线
// @Tags 时间线
// @Produce json
// @Param name path string true "时间线名称"
// @Success 200 {object} response.Response{data=TimelineInfo}
// @Router /api/v1/timelines/{name}/refresh [post]
func (h *Handler) Refresh(c *gin.Context) {
	tl, ok := h.timeline(c)
	if !ok {
		return
	}
	var meta TimelineInfo
	err := h.onLoop(c.Request.Context(), func() error {
		tl.Reset()
		meta = info(tl)
		return nil
	})
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, meta)
}

// RowAction 行操作：favorite、repeat、visibility 切换状态，reply、menu 返回请求对应的 status
// @Summary 行操作
// @Tags 时间线
// @Produce json
// @Param name path string true "时间线名称"
// @Param row path int true "行号"
// @Param action path string true "操作" Enums(favorite, repeat, visibility, reply, menu)
// @Success 200 {object} response.Response{data=map[string]interface{}}
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /api/v1/timelines/{name}/rows/{row}/{action} [post]
func (h *Handler) RowAction(c *gin.Context) {
	tl, ok := h.timeline(c)
	if !ok {
		return
	}
	row, err := strconv.Atoi(c.Param("row"))
	if err != nil {
		response.BadRequest(c, "row must be an integer")
		return
	}
	action := c.Param("action")
	var out gin.H
	err = h.onLoop(c.Request.Context(), func() error {
		var err error
		switch action {
		case "favorite":
			err = tl.ToggleFavorite(row)
		case "repeat":
			err = tl.ToggleRepeat(row)
		case "visibility":
			err = tl.ToggleAttachmentsVisible(row)
		case "reply", "menu":
			out, err = h.request(tl, row, action)
			return err
		default:
			return errUnknownAction
		}
		if err != nil {
			return err
		}
		p, _ := tl.Row(row)
		target := p.Display()
		out = gin.H{
			"id":                  p.ID,
			"favorite":            target.Favourited,
			"reblogged":           target.Reblogged,
			"attachments_visible": target.AttachmentsVisible,
		}
		return nil
	})
	if errors.Is(err, errUnknownAction) {
		response.BadRequest(c, err.Error())
		return
	}
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, out)
}

var errUnknownAction = errors.New("unknown row action")

// intent 捕获 reply/menu 请求
type intent struct {
	acc  account.Account
	post *model.Post
	row  int
	kind string
}

func (i *intent) RowsInserted(int, int) {}
func (i *intent) RowsRemoved(int, int)  {}
func (i *intent) DataChanged(int, int)  {}
func (i *intent) ModelReset()           {}
func (i *intent) WantReply(acc account.Account, p *model.Post, row int) {
	i.acc, i.post, i.row, i.kind = acc, p, row, "reply"
}
func (i *intent) WantMenu(acc account.Account, p *model.Post, row int) {
	i.acc, i.post, i.row, i.kind = acc, p, row, "menu"
}

// request 在临时观察者下发出 reply/menu 请求，返回被请求的 status
func (h *Handler) request(tl *timeline.Timeline, row int, action string) (gin.H, error) {
	capture := &intent{}
	remove := tl.Observe(capture)
	defer remove()
	var err error
	if action == "reply" {
		err = tl.RequestReply(row)
	} else {
		err = tl.RequestMenu(row)
	}
	if err != nil {
		return nil, err
	}
	out := gin.H{"action": capture.kind, "row": capture.row, "post": capture.post}
	if capture.acc != nil {
		out["account"] = capture.acc.ID()
	}
	return out, nil
}

// Thread 读取某行 status 的会话上下文
// @Summary 会话详情
// @Tags 时间线
// @Produce json
// @Param name path string true "时间线名称"
// @Param row path int true "行号"
// @Success 200 {object} response.Response{data=map[string]interface{}}
// @Failure 404 {object} response.Response
// @Router /api/v1/timelines/{name}/rows/{row}/thread [get]
func (h *Handler) Thread(c *gin.Context) {
	tl, ok := h.timeline(c)
	if !ok {
		return
	}
	row, err := strconv.Atoi(c.Param("row"))
	if err != nil {
		response.BadRequest(c, "row must be an integer")
		return
	}
	ctx := c.Request.Context()
	var th *timeline.Thread
	err = h.onLoop(ctx, func() error {
		v, err := tl.Data(row, timeline.RoleThreadModel)
		if err != nil {
			return err
		}
		th = v.(*timeline.Thread)
		return nil
	})
	if err != nil {
		fail(c, err)
		return
	}
	defer func() { _ = h.loop.Post(th.Close) }()

	deadline := time.Now().Add(h.threadWait)
	var rows []map[string]any
	for {
		done := false
		err = h.onLoop(ctx, func() error {
			if th.Fetching() && time.Now().Before(deadline) {
				return nil
			}
			done = true
			var err error
			rows, err = project(th, 0, th.RowCount(), timeline.FieldRoles())
			return err
		})
		if err != nil {
			fail(c, err)
			return
		}
		if done {
			break
		}
		select {
		case <-ctx.Done():
			fail(c, ctx.Err())
			return
		case <-time.After(20 * time.Millisecond):
		}
	}
	response.Success(c, gin.H{"post_id": th.PostID(), "rows": rows})
}
