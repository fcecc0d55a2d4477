// Package console runs the turn queue against a terminal instead of Slack.
//
// Each input line names a participant and a command, for example
// "alice join" or "bob done". On a terminal, Model shows the queue live
// with the holder's remaining time above a scrollback of announcements.
// Piped input goes through Session instead, which writes plain lines and
// suits scripted demos.
package console
