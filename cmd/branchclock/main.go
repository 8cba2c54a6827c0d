// branchclock tracks time spent on tickets from git activity.
//
// It watches the repositories of a workspace, resolves the checked-out
// branch to a Jira ticket, runs a timer while you work and logs the time to
// Jira, mirroring it to Productive when configured.
//
// Usage:
//
//	# Watch the workspace and serve the local control API
//	branchclock run
//
//	# Same, with the terminal dashboard
//	branchclock run --tui
//
//	# Show the timer and the watched repositories
//	branchclock status
//
//	# Resolve a branch name to its ticket
//	branchclock resolve feature/PROJ-123-login
//
//	# Log time by hand
//	branchclock log --ticket PROJ-123 --minutes 45 --message "code review"
//
//	# Show what was logged
//	branchclock history --limit 20
package main

func main() {
	Execute()
}
