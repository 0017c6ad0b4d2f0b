// Package introspect turns the text printed by process-listing and
// connection-table commands into rows.
//
// The text format is a brittle contract: columns are separated by runs of
// whitespace, headers and banners are mixed in with data, and a failed query may
// print nothing at all. Parsing therefore never fails. A line that cannot be read
// as a row is skipped, and an empty result simply means nothing was observed.
package introspect

import (
	"iter"
	"net"
	"strconv"
	"strings"
)

// Connection states that count as a live tunnel.
const (
	StateSynSent     = "SYN_SENT"
	StateEstablished = "ESTABLISHED"
)

// LiveStates are the states in which a client is considered connected.
var LiveStates = []string{StateSynSent, StateEstablished}

// ProcessRow is one entry of the process table.
type ProcessRow struct {
	PID   int
	Image string
}

// ConnectionRow is one entry of the TCP connection table.
type ConnectionRow struct {
	Protocol string
	Local    string
	Remote   string
	State    string
	PID      int
}

// RemoteHost returns the host part of the remote address.
func (r ConnectionRow) RemoteHost() string {
	return hostOf(r.Remote)
}

// Parser reads rows out of raw command output.
type Parser interface {
	ProcessRows(raw, nameFilter string) iter.Seq[ProcessRow]
	ConnectionRows(raw, hostFilter, stateFilter string) iter.Seq[ConnectionRow]
}

// TextParser parses whitespace-separated columns, as printed by tasklist and
// netstat -ano.
type TextParser struct{}

// ProcessRows implements Parser.
func (TextParser) ProcessRows(raw, nameFilter string) iter.Seq[ProcessRow] {
	return ParseProcessRows(raw, nameFilter)
}

// ConnectionRows implements Parser.
func (TextParser) ConnectionRows(raw, hostFilter, stateFilter string) iter.Seq[ConnectionRow] {
	return ParseConnectionRows(raw, hostFilter, stateFilter)
}

// ParseProcessRows yields a row for every line containing nameFilter whose
// second column is a pid.
func ParseProcessRows(raw, nameFilter string) iter.Seq[ProcessRow] {
	return func(yield func(ProcessRow) bool) {
		for line := range lines(raw) {
			if !strings.Contains(line, nameFilter) {
				continue
			}
			fields := normalize(line)
			if len(fields) < 2 {
				continue
			}
			pid, ok := parsePID(fields[1])
			if !ok {
				continue
			}
			if !yield(ProcessRow{PID: pid, Image: fields[0]}) {
				return
			}
		}
	}
}

// ParseConnectionRows yields a row for every line containing both filters
// whose remote host is hostFilter. Columns are protocol, local address, remote
// address, state and owning pid.
func ParseConnectionRows(raw, hostFilter, stateFilter string) iter.Seq[ConnectionRow] {
	return func(yield func(ConnectionRow) bool) {
		for line := range lines(raw) {
			if !strings.Contains(line, hostFilter) || !strings.Contains(line, stateFilter) {
				continue
			}
			fields := normalize(line)
			if len(fields) < 5 {
				continue
			}
			pid, ok := parsePID(fields[4])
			if !ok {
				continue
			}
			row := ConnectionRow{
				Protocol: fields[0],
				Local:    fields[1],
				Remote:   fields[2],
				State:    fields[3],
				PID:      pid,
			}
			if hostFilter != "" && row.RemoteHost() != hostFilter {
				continue
			}
			if stateFilter != "" && row.State != stateFilter {
				continue
			}
			if !yield(row) {
				return
			}
		}
	}
}

func lines(raw string) iter.Seq[string] {
	return func(yield func(string) bool) {
		for line := range strings.Lines(raw) {
			if !yield(strings.TrimRight(line, "\r\n")) {
				return
			}
		}
	}
}

// normalize collapses whitespace runs and splits the line into columns.
func normalize(line string) []string {
	return strings.Fields(line)
}

func parsePID(field string) (int, bool) {
	pid, err := strconv.Atoi(field)
	if err != nil || pid <= 0 {
		return 0, false
	}
	return pid, true
}

// hostOf strips the port from "host:port" or "[v6]:port".
func hostOf(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return strings.Trim(addr, "[]")
}
