package services

import "fmt"

// APIBase prefixes every route the service redirects to.
const APIBase = "/api/v1"

// GlobalFeedPath is where a client lands after publishing a post.
const GlobalFeedPath = APIBase + "/posts"

// ProfilePath is the profile page of username.
func ProfilePath(username string) string {
	return fmt.Sprintf("%s/users/%s", APIBase, username)
}

// PostPath is the detail page of a post.
func PostPath(username string, id uint) string {
	return fmt.Sprintf("%s/users/%s/posts/%d", APIBase, username, id)
}

// GroupPath is the feed of a group.
func GroupPath(slug string) string {
	return fmt.Sprintf("%s/groups/%s/posts", APIBase, slug)
}
