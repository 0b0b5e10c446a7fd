package session

import "fmt"

// Page is where a session is in its flow
type Page int

const (
	PageLoading Page = iota
	PageSelectOS
	PageOptions
	PageDownloading
	PageFinalizing
	PageComplete
	PageError
)

var pageNames = map[Page]string{
	PageLoading:     "loading",
	PageSelectOS:    "select_os",
	PageOptions:     "options",
	PageDownloading: "downloading",
	PageFinalizing:  "finalizing",
	PageComplete:    "complete",
	PageError:       "error",
}

func (p Page) String() string {
	if s, ok := pageNames[p]; ok {
		return s
	}
	return fmt.Sprintf("Page(%d)", int(p))
}

func (p Page) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Terminal reports whether the session has nothing left to do on p
func (p Page) Terminal() bool {
	return p == PageComplete || p == PageError
}
