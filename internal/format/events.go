package format

import (
	"strconv"
	"strings"

	"github.com/google/go-github/v61/github"
	"github.com/kehao95/gh-notify/internal/message"
)

func formatPing(ev *github.PingEvent) (message.Result, error) {
	var id int64
	switch {
	case ev.Hook != nil && ev.Hook.ID != nil:
		id = ev.Hook.GetID()
	case ev.HookID != nil:
		id = ev.GetHookID()
	default:
		return message.Result{}, missing("hook.id")
	}
	return message.Success(message.ChatMessage{
		Text: "_" + strconv.FormatInt(id, 10) + "_\n:thumbsup: " + ev.GetZen(),
	}), nil
}

func formatIssues(ev *github.IssuesEvent) (message.Result, error) {
	action := ev.GetAction()
	switch action {
	case "opened", "reopened", "edited", "labeled", "assigned", "unassigned", "closed":
	default:
		return message.Failure(MsgUnsupportedIssueAction), nil
	}
	if ev.Issue == nil {
		return message.Result{}, missing("issue")
	}
	if ev.Repo == nil {
		return message.Result{}, missing("repository")
	}
	if ev.Sender == nil {
		return message.Result{}, missing("sender")
	}

	issue := ev.Issue
	var body string
	switch action {
	case "opened", "reopened", "edited":
		body = issue.GetBody()
	case "labeled":
		body = "Current labels: " + labelsField(issue.Labels).Value
	case "assigned", "unassigned":
		// The issues API only reports a single assignee.
		if action == "assigned" && issue.Assignee == nil {
			return message.Result{}, missing("issue.assignee")
		}
		body = "Current assignee: " + assigneeLogin(issue.Assignee)
	case "closed":
		if issue.ClosedBy != nil {
			body = "Closed by: " + issue.ClosedBy.GetLogin()
		} else {
			body = "Closed."
		}
	}

	text := headline(ev.Repo.GetFullName(), capitalizeFirst(action)+" issue", issue.GetNumber(), issue.GetTitle(), issue.GetHTMLURL()) + body
	return message.Success(attachment(ev.Sender.GetAvatarURL(), text)), nil
}

func formatIssueComment(ev *github.IssueCommentEvent) (message.Result, error) {
	if ev.Comment == nil {
		return message.Result{}, missing("comment")
	}
	if ev.Comment.User == nil {
		return message.Result{}, missing("comment.user")
	}
	if ev.Issue == nil {
		return message.Result{}, missing("issue")
	}
	if ev.Repo == nil {
		return message.Result{}, missing("repository")
	}

	verb := commentVerb(ev.GetAction()) + " on issue"
	text := headline(ev.Repo.GetFullName(), verb, ev.Issue.GetNumber(), ev.Issue.GetTitle(), ev.Comment.GetHTMLURL()) + ev.Comment.GetBody()
	return message.Success(attachment(ev.Comment.GetUser().GetAvatarURL(), text)), nil
}

func formatCommitComment(ev *github.CommitCommentEvent) (message.Result, error) {
	if ev.Comment == nil {
		return message.Result{}, missing("comment")
	}
	if ev.Comment.User == nil {
		return message.Result{}, missing("comment.user")
	}
	if ev.Repo == nil {
		return message.Result{}, missing("repository")
	}

	c := ev.Comment
	text := "_" + ev.Repo.GetFullName() + "_\n" +
		"**[" + commentVerb(ev.GetAction()) + " on commit id " + c.GetCommitID() + "](" + c.GetHTMLURL() + ")**\n\n" +
		c.GetBody()
	return message.Success(attachment(c.GetUser().GetAvatarURL(), text)), nil
}

func formatPush(ev *github.PushEvent) (message.Result, error) {
	if ev.Repo == nil {
		return message.Result{}, missing("repository")
	}
	if ev.Sender == nil {
		return message.Result{}, missing("sender")
	}

	ref := ev.GetRef()
	branch := ref[strings.LastIndex(ref, "/")+1:]

	var sb strings.Builder
	sb.WriteString("**Pushed to [" + ev.Repo.GetFullName() + "](" + ev.Repo.GetURL() + "):" + branch + "**\n\n")

	// Newest first.
	for i := len(ev.Commits) - 1; i >= 0; i-- {
		c := ev.Commits[i]
		sb.WriteString(commitLine(c.GetID(), c.GetURL(), c.GetMessage()))
		if i > 0 {
			sb.WriteByte('\n')
		}
	}

	return message.Success(attachment(ev.Sender.GetAvatarURL(), sb.String())), nil
}

func formatPullRequest(ev *github.PullRequestEvent) (message.Result, error) {
	action := ev.GetAction()
	switch action {
	case "opened", "reopened", "edited", "synchronize", "labeled", "assigned", "unassigned", "closed":
	default:
		return message.Failure(MsgUnsupportedPullAction), nil
	}
	if ev.PullRequest == nil {
		return message.Result{}, missing("pull_request")
	}
	if ev.Repo == nil {
		return message.Result{}, missing("repository")
	}
	if ev.Sender == nil {
		return message.Result{}, missing("sender")
	}

	pr := ev.PullRequest
	var body string
	switch action {
	case "opened", "reopened", "edited", "synchronize":
		body = pr.GetBody()
	case "labeled":
		body = "Current labels: " + labelsField(pr.Labels).Value
	case "assigned", "unassigned":
		if action == "assigned" && pr.Assignee == nil {
			return message.Result{}, missing("pull_request.assignee")
		}
		body = "Current assignee: " + assigneeLogin(pr.Assignee)
	case "closed":
		if pr.GetMerged() {
			if pr.MergedBy == nil {
				return message.Result{}, missing("pull_request.merged_by")
			}
			body = "Merged by: " + pr.MergedBy.GetLogin()
		} else {
			body = "Closed."
		}
	}

	text := headline(ev.Repo.GetFullName(), capitalizeFirst(action)+" pull request", pr.GetNumber(), pr.GetTitle(), pr.GetHTMLURL()) + body
	return message.Success(attachment(ev.Sender.GetAvatarURL(), text)), nil
}

// formatWorkflowRun reports failed runs only. Every other action or
// conclusion is skipped.
func formatWorkflowRun(ev *github.WorkflowRunEvent) (message.Result, error) {
	if ev.GetAction() != "completed" {
		return message.Skip(), nil
	}
	wr := ev.WorkflowRun
	if wr == nil {
		return message.Result{}, missing("workflow_run")
	}
	if wr.GetConclusion() != "failure" {
		return message.Skip(), nil
	}
	if wr.HeadCommit == nil {
		return message.Result{}, missing("workflow_run.head_commit")
	}
	if wr.Repository == nil {
		return message.Result{}, missing("workflow_run.repository")
	}

	sha := wr.HeadCommit.GetID()
	return message.Success(message.ChatMessage{
		Text: ":x: Build or tests failed: " + wr.GetHTMLURL(),
		Attachments: []message.Attachment{{
			Color:  "red",
			Text:   commitLine(sha, wr.Repository.GetHTMLURL()+"/commit/"+sha, wr.HeadCommit.GetMessage()),
			Fields: []message.Field{},
		}},
	}), nil
}

func commentVerb(action string) string {
	if action == "edited" {
		return "Edited comment"
	}
	return "Comment"
}

func assigneeLogin(u *github.User) string {
	if u == nil {
		return "none"
	}
	return u.GetLogin()
}
