package parser

import "fmt"

// errRecovered turns a parser panic into an error instead of letting
// it reach the shared worker goroutine, satisfying §4.3 "Parser
// purity" fault isolation at the dispatch boundary.
func errRecovered(rec interface{}) error {
	return fmt.Errorf("parser panicked: %v", rec)
}
