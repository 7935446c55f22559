// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package webhook

import (
	"encoding/json"
	"fmt"
)

// ActivityInfo describes one activity feed entry derived from a
// processed delivery. EntityNumber is 0 when the activity has no
// associated issue or pull request.
type ActivityInfo struct {
	ActivityType   string
	Title          string
	Description    string
	ActorLogin     string
	ActorAvatarURL string
	EntityNumber   int64
}

// MapActivity maps a delivery to an activity feed entry. The second
// return is false when the event produces no entry.
func MapActivity(eventName, action string, payload []byte) (*ActivityInfo, bool) {
	switch eventName {
	case "issues":
		return mapIssuesActivity(action, payload)
	case "pull_request":
		return mapPullRequestActivity(action, payload)
	case "issue_comment":
		return mapIssueCommentActivity(action, payload)
	case "push":
		return mapPushActivity(payload)
	case "pull_request_review":
		return mapReviewActivity(payload)
	case "check_run":
		return mapCheckRunActivity(action, payload)
	case "create", "delete":
		return mapBranchActivity(eventName, payload)
	default:
		return nil, false
	}
}

func actorOf(sender, fallback *userPayload) (string, string) {
	if sender != nil && sender.Login != "" {
		return sender.Login, sender.AvatarURL
	}
	if fallback != nil {
		return fallback.Login, fallback.AvatarURL
	}
	return "", ""
}

func mapIssuesActivity(action string, payload []byte) (*ActivityInfo, bool) {
	var event issuesEvent
	if err := json.Unmarshal(payload, &event); err != nil || event.Issue == nil || action == "" {
		return nil, false
	}

	info := &ActivityInfo{
		ActivityType: "issue." + action,
		Title:        event.Issue.Title,
		EntityNumber: event.Issue.Number,
	}
	info.ActorLogin, info.ActorAvatarURL = actorOf(event.Sender, event.Issue.User)
	if action == "opened" && event.Issue.Body != nil {
		info.Description = previewText(*event.Issue.Body)
	}
	return info, true
}

func mapPullRequestActivity(action string, payload []byte) (*ActivityInfo, bool) {
	var event pullRequestEvent
	if err := json.Unmarshal(payload, &event); err != nil || event.PullRequest == nil || action == "" {
		return nil, false
	}

	info := &ActivityInfo{
		ActivityType: "pr." + action,
		Title:        event.PullRequest.Title,
		EntityNumber: event.PullRequest.Number,
	}
	info.ActorLogin, info.ActorAvatarURL = actorOf(event.Sender, event.PullRequest.User)
	if action == "opened" && event.PullRequest.Body != nil {
		info.Description = previewText(*event.PullRequest.Body)
	}
	return info, true
}

func mapIssueCommentActivity(action string, payload []byte) (*ActivityInfo, bool) {
	var event issueCommentEvent
	if err := json.Unmarshal(payload, &event); err != nil ||
		event.Comment == nil || event.Issue == nil || action == "" {
		return nil, false
	}

	kind := "issue_comment."
	if event.Issue.PullRequest != nil {
		kind = "pr_comment."
	}

	info := &ActivityInfo{
		ActivityType: kind + action,
		Title:        event.Issue.Title,
		Description:  previewText(event.Comment.Body),
		EntityNumber: event.Issue.Number,
	}
	info.ActorLogin, info.ActorAvatarURL = actorOf(event.Sender, event.Comment.User)
	return info, true
}

func mapPushActivity(payload []byte) (*ActivityInfo, bool) {
	var event pushEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, false
	}
	branch, ok := branchFromRef(event.Ref)
	if !ok || event.Deleted {
		return nil, false
	}

	info := &ActivityInfo{
		ActivityType: "push",
		Title:        fmt.Sprintf("Pushed %d commits to %s", len(event.Commits), branch),
	}
	if len(event.Commits) > 0 {
		info.Description = messageHeadline(event.Commits[0].Message)
	}
	info.ActorLogin, info.ActorAvatarURL = actorOf(event.Sender, nil)
	return info, true
}

func mapReviewActivity(payload []byte) (*ActivityInfo, bool) {
	var event pullRequestReviewEvent
	if err := json.Unmarshal(payload, &event); err != nil ||
		event.Review == nil || event.PullRequest == nil || event.Review.State == "" {
		return nil, false
	}

	info := &ActivityInfo{
		ActivityType: "pr_review." + event.Review.State,
		Title:        event.PullRequest.Title,
		EntityNumber: event.PullRequest.Number,
	}
	info.ActorLogin, info.ActorAvatarURL = actorOf(event.Sender, event.Review.User)
	return info, true
}

func mapCheckRunActivity(action string, payload []byte) (*ActivityInfo, bool) {
	var event checkRunEvent
	if err := json.Unmarshal(payload, &event); err != nil ||
		event.CheckRun == nil || action != "completed" || event.CheckRun.Conclusion == nil {
		return nil, false
	}

	info := &ActivityInfo{
		ActivityType: "check_run." + *event.CheckRun.Conclusion,
		Title:        event.CheckRun.Name,
	}
	info.ActorLogin, info.ActorAvatarURL = actorOf(event.Sender, nil)
	return info, true
}

func mapBranchActivity(eventName string, payload []byte) (*ActivityInfo, bool) {
	var event branchEvent
	if err := json.Unmarshal(payload, &event); err != nil ||
		event.RefType != "branch" || event.Ref == "" {
		return nil, false
	}

	kind := "branch.created"
	verb := "Created"
	if eventName == "delete" {
		kind = "branch.deleted"
		verb = "Deleted"
	}

	info := &ActivityInfo{
		ActivityType: kind,
		Title:        fmt.Sprintf("%s branch %s", verb, event.Ref),
	}
	info.ActorLogin, info.ActorAvatarURL = actorOf(event.Sender, nil)
	return info, true
}
