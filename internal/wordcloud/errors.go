package wordcloud

import "errors"

var (
	// ErrNoWords rejects a render request with an empty frequency map.
	// Raised before any lock is taken or file is touched.
	ErrNoWords = errors.New("no word frequencies to render")

	// ErrContended signals that another render for the same key was in
	// flight and its artifact did not appear within the wait bound.
	ErrContended = errors.New("render contended: same key already in progress")
)
