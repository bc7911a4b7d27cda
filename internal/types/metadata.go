// SPDX-License-Identifier: MIT

package types

import "fmt"

// Metadata is the immutable set of facts the downloader produces about a
// video before any audio bytes are fetched. The title must already have
// had the characters in TitleForbiddenChars stripped by the downloader.
type Metadata struct {
	Title       string
	Uploader    string
	Description string
	Duration    uint64 // seconds
}

func (m Metadata) String() string {
	return fmt.Sprintf("{title: %q, uploader: %q, duration: %ds, description: %d bytes}",
		m.Title, m.Uploader, m.Duration, len(m.Description))
}
