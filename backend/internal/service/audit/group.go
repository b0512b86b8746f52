package audit

import (
	"context"
	"sync"
)

// Group 聚合一次批量操作中的多条审计事件：
// 过程中通过 Add 收集子事件，Close 时逐条落账并额外生成一条父事件，
// 父事件的 details 里带上子事件数量与 (action, resource_id, success) 摘要，
// 避免一次批量操作在审计列表里碎成一堆互不相关的行。
type Group struct {
	svc    *Service
	parent Entry

	mu   sync.Mutex
	subs []Entry
}

// NewGroup 以 parent 为汇总事件创建分组上下文。
func (s *Service) NewGroup(parent Entry) *Group {
	return &Group{
		svc:    s,
		parent: parent,
	}
}

// Add 收集一条子事件，真正落账推迟到 Close。
func (g *Group) Add(entry Entry) {
	if g == nil {
		return
	}
	g.mu.Lock()
	g.subs = append(g.subs, entry)
	g.mu.Unlock()
}

// Close 逐条记录子事件，并记录带汇总信息的父事件。与 Log 一样不返回错误。
func (g *Group) Close(ctx context.Context) {
	if g == nil || g.svc == nil {
		return
	}

	g.mu.Lock()
	subs := g.subs
	g.subs = nil
	g.mu.Unlock()

	for _, sub := range subs {
		g.svc.Log(ctx, sub)
	}

	summaries := make([]map[string]any, 0, len(subs))
	for _, sub := range subs {
		summary := map[string]any{
			"action":  sub.Action,
			"success": sub.Success,
		}
		if sub.ResourceID != nil {
			summary["resource_id"] = *sub.ResourceID
		}
		if sub.ErrorMessage != "" {
			summary["error_message"] = sub.ErrorMessage
		}
		summaries = append(summaries, summary)
	}

	parent := g.parent
	details := make(map[string]any, len(parent.Details)+2)
	for key, value := range parent.Details {
		details[key] = value
	}
	details["sub_event_count"] = len(subs)
	details["sub_events"] = summaries
	parent.Details = details

	g.svc.Log(ctx, parent)
}
