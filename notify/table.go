package notify

import "slices"

type connection struct {
	sub   Subscriber
	files map[string]struct{}
}

// table maps connection ids to the filenames they wait on.
// It is not safe for concurrent use.
type table struct {
	conns map[string]*connection
}

func newTable() *table {
	return &table{conns: map[string]*connection{}}
}

func (t *table) open(sub Subscriber) {
	if _, ok := t.conns[sub.ID()]; ok {
		return
	}
	t.conns[sub.ID()] = &connection{sub: sub, files: map[string]struct{}{}}
}

// close forgets the connection and returns how many subscriptions it had.
func (t *table) close(connID string) int {
	conn, ok := t.conns[connID]
	if !ok {
		return 0
	}
	delete(t.conns, connID)
	return len(conn.files)
}

// add returns false if the connection is not open.
func (t *table) add(connID, filename string) bool {
	conn, ok := t.conns[connID]
	if !ok {
		return false
	}
	conn.files[filename] = struct{}{}
	return true
}

// remove returns true if the subscription existed.
func (t *table) remove(connID, filename string) bool {
	conn, ok := t.conns[connID]
	if !ok {
		return false
	}
	if _, ok := conn.files[filename]; !ok {
		return false
	}
	delete(conn.files, filename)
	return true
}

// takeAll removes filename from every connection and returns those that had it.
func (t *table) takeAll(filename string) []Subscriber {
	var subs []Subscriber
	for _, conn := range t.conns {
		if _, ok := conn.files[filename]; ok {
			delete(conn.files, filename)
			subs = append(subs, conn.sub)
		}
	}
	return subs
}

func (t *table) pending(connID string) []string {
	conn, ok := t.conns[connID]
	if !ok {
		return nil
	}
	files := make([]string, 0, len(conn.files))
	for f := range conn.files {
		files = append(files, f)
	}
	slices.Sort(files)
	return files
}
