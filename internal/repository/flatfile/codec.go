// internal/repository/flatfile/codec.go
package flatfile

import (
	"bytes"
	"fmt"
	"strconv"
	"time"

	"sbvc/internal/diff"
	vcerrors "sbvc/internal/errors"
)

// encode renders the whole store as the top-level cell list
// [tracked_file_path, current_version_id, next_free_id, versions].
func (s *Store) encode() []byte {
	var buf bytes.Buffer

	writeCell(&buf, []byte(s.trackedPath))
	writeNumCell(&buf, uint64(s.currentID))
	writeNumCell(&buf, uint64(s.nextID))

	var versions bytes.Buffer
	for _, r := range s.records {
		writeCell(&versions, encodeRecord(r))
	}
	writeCell(&buf, versions.Bytes())

	return buf.Bytes()
}

func encodeRecord(r *record) []byte {
	var buf bytes.Buffer

	writeNumCell(&buf, uint64(r.id))
	writeNumCell(&buf, uint64(r.parentID))

	var meta bytes.Buffer
	writeCell(&meta, []byte(r.name))
	writeNumCell(&meta, uint64(r.createdAt.Unix()))
	writeCell(&buf, meta.Bytes())

	var dels bytes.Buffer
	for _, d := range r.deletions {
		var cell bytes.Buffer
		writeNumCell(&cell, uint64(d.Start))
		writeNumCell(&cell, uint64(d.End))
		writeCell(&dels, cell.Bytes())
	}
	writeCell(&buf, dels.Bytes())

	var inss bytes.Buffer
	for _, ins := range r.insertions {
		var cell bytes.Buffer
		writeNumCell(&cell, uint64(ins.Start))
		writeCell(&cell, ins.Data)
		writeCell(&inss, cell.Bytes())
	}
	writeCell(&buf, inss.Bytes())

	return buf.Bytes()
}

func writeCell(buf *bytes.Buffer, body []byte) {
	buf.WriteString(strconv.Itoa(len(body)))
	buf.WriteByte('\n')
	buf.Write(body)
}

func writeNumCell(buf *bytes.Buffer, n uint64) {
	writeCell(buf, []byte(strconv.FormatUint(n, 10)))
}

func (s *Store) decode(data []byte) error {
	cur := &cursor{data: data}

	tracked, err := cur.cell("tracked_file_path")
	if err != nil {
		return err
	}
	s.trackedPath = string(tracked)

	if s.currentID, err = cur.num("current_version_id"); err != nil {
		return err
	}
	if s.nextID, err = cur.num("next_free_id"); err != nil {
		return err
	}

	versions, err := cur.cell("versions")
	if err != nil {
		return err
	}
	if rest := cur.remaining(); rest != 0 {
		return vcerrors.Malformed("versions", fmt.Errorf("%d trailing bytes after version list", rest))
	}

	vcur := &cursor{data: versions}
	for vcur.remaining() > 0 {
		body, err := vcur.cell("version")
		if err != nil {
			return err
		}
		r, err := decodeRecord(body)
		if err != nil {
			return err
		}
		s.records = append(s.records, r)
		s.index[r.id] = r
	}

	return nil
}

func decodeRecord(body []byte) (*record, error) {
	cur := &cursor{data: body}
	r := &record{}

	var err error
	if r.id, err = cur.num("version.id"); err != nil {
		return nil, err
	}
	if r.parentID, err = cur.num("version.parent_id"); err != nil {
		return nil, err
	}

	meta, err := cur.cell("version.meta")
	if err != nil {
		return nil, err
	}
	mcur := &cursor{data: meta}
	name, err := mcur.cell("version.name")
	if err != nil {
		return nil, err
	}
	r.name = string(name)
	epoch, err := mcur.num64("version.created_at")
	if err != nil {
		return nil, err
	}
	r.createdAt = time.Unix(int64(epoch), 0)

	dels, err := cur.cell("version.deletions")
	if err != nil {
		return nil, err
	}
	dcur := &cursor{data: dels}
	for dcur.remaining() > 0 {
		body, err := dcur.cell("deletion")
		if err != nil {
			return nil, err
		}
		ccur := &cursor{data: body}
		start, err := ccur.num("deletion.start")
		if err != nil {
			return nil, err
		}
		end, err := ccur.num("deletion.end")
		if err != nil {
			return nil, err
		}
		r.deletions = append(r.deletions, diff.Deletion{Start: int(start), End: int(end)})
	}

	inss, err := cur.cell("version.insertions")
	if err != nil {
		return nil, err
	}
	icur := &cursor{data: inss}
	for icur.remaining() > 0 {
		body, err := icur.cell("insertion")
		if err != nil {
			return nil, err
		}
		ccur := &cursor{data: body}
		start, err := ccur.num("insertion.start")
		if err != nil {
			return nil, err
		}
		payload, err := ccur.cell("insertion.data")
		if err != nil {
			return nil, err
		}
		r.insertions = append(r.insertions, diff.Insertion{
			Start: int(start),
			Data:  append([]byte(nil), payload...),
		})
	}

	return r, nil
}

// cursor walks one nesting level of the cell encoding.
type cursor struct {
	data []byte
	pos  int
}

func (c *cursor) remaining() int {
	return len(c.data) - c.pos
}

// cell reads the next length-prefixed cell, reporting field on any parse
// failure.
func (c *cursor) cell(field string) ([]byte, error) {
	nl := bytes.IndexByte(c.data[c.pos:], '\n')
	if nl < 0 {
		return nil, vcerrors.Malformed(field, fmt.Errorf("missing length prefix"))
	}

	length, err := strconv.Atoi(string(c.data[c.pos : c.pos+nl]))
	if err != nil || length < 0 {
		return nil, vcerrors.Malformed(field, fmt.Errorf("bad length prefix %q", c.data[c.pos:c.pos+nl]))
	}

	start := c.pos + nl + 1
	if start+length > len(c.data) {
		return nil, vcerrors.Malformed(field, fmt.Errorf("cell body truncated: want %d bytes, have %d", length, len(c.data)-start))
	}

	c.pos = start + length
	return c.data[start : start+length], nil
}

func (c *cursor) num(field string) (uint32, error) {
	n, err := c.num64(field)
	if err != nil {
		return 0, err
	}
	if n > 1<<32-1 {
		return 0, vcerrors.Malformed(field, fmt.Errorf("value %d overflows uint32", n))
	}
	return uint32(n), nil
}

func (c *cursor) num64(field string) (uint64, error) {
	body, err := c.cell(field)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseUint(string(body), 10, 64)
	if err != nil {
		return 0, vcerrors.Malformed(field, err)
	}
	return n, nil
}
