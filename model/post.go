package model

import "time"

/*
Post is a publication shown in the home feed.

Id: client generated uuid, assigned before the first write
Title: required, the only field validated before submission
Description: optional free text
PhotoUrl: download url of the attached photo, set only after the upload finished
Timestamp: milliseconds since epoch, assigned at submission time
Author: snapshot of the author's profile when the post was created

Stored under posts/{Id}. Posts are never updated or deleted by this service.
*/
type Post struct {
	Id          string `json:"id" firestore:"id"`
	Title       string `json:"title" firestore:"title"`
	Description string `json:"description" firestore:"description"`
	PhotoUrl    string `json:"photoUrl,omitempty" firestore:"photoUrl,omitempty"`
	Timestamp   int64  `json:"timestamp" firestore:"timestamp"`
	Author      *User  `json:"author,omitempty" firestore:"author,omitempty"`
}

/*
Comment is an append-only reply to a post.

Stored under posts/{PostId}/comments/{Id} and read back ordered by Timestamp
ascending.
*/
type Comment struct {
	Id        string `json:"id" firestore:"id"`
	PostId    string `json:"postId" firestore:"postId"`
	Text      string `json:"text" firestore:"text"`
	Timestamp int64  `json:"timestamp" firestore:"timestamp"`
	Author    *User  `json:"author,omitempty" firestore:"author,omitempty"`
}

const (
	PostsCollection    = "posts"
	CommentsCollection = "comments"
	UsersCollection    = "users"

	// Field every post and comment listing is ordered by.
	TimestampField = "timestamp"
)

// NowMillis is the timestamp format used by posts and comments.
func NowMillis() int64 {
	return time.Now().UnixNano() / int64(time.Millisecond)
}
