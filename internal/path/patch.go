package path

import (
	"strconv"

	"github.com/tvarstm/stm/internal/jsonval"
)

// Get projects the value at p within doc (spec §4.2 read_tvar_path,
// §4.5). Traversing through a missing object key or an out-of-range
// array index yields *AbsentError. An index segment applied to an
// object looks up the index's decimal string form as a key, which is
// how Set stores a numeric segment under a missing node.
func Get(doc jsonval.Value, p Path) (jsonval.Value, error) {
	cur := doc
	for _, seg := range p.Segments {
		switch seg.Kind {
		case Key:
			obj, ok := cur.(jsonval.Object)
			if !ok {
				return nil, &AbsentError{Path: p.String()}
			}
			v, present := obj[seg.Key]
			if !present {
				return nil, &AbsentError{Path: p.String()}
			}
			cur = v
		case Index:
			if obj, isObj := cur.(jsonval.Object); isObj {
				v, present := obj[strconv.Itoa(seg.Index)]
				if !present {
					return nil, &AbsentError{Path: p.String()}
				}
				cur = v
				continue
			}
			arr, ok := cur.(jsonval.Array)
			if !ok || seg.Index < 0 || seg.Index >= len(arr) {
				return nil, &AbsentError{Path: p.String()}
			}
			cur = arr[seg.Index]
		}
	}
	return cur, nil
}

// Set applies set(doc, path, value) per spec §4.5: if path is root,
// value replaces doc entirely. Otherwise the document is walked
// segment-by-segment; any missing intermediate node is created as an
// empty object (never an array, even for a numeric segment — the
// reference behavior per spec §4.5 and §9's array-autovivification open
// question). Set never mutates doc's leaves in place for immutable
// scalar types; object/array containers along the path are updated and
// the (possibly new) root is returned.
func Set(doc jsonval.Value, p Path, value jsonval.Value) jsonval.Value {
	if p.IsRoot() {
		return value
	}
	return setAt(doc, p.Segments, value)
}

func setAt(cur jsonval.Value, segs []Segment, value jsonval.Value) jsonval.Value {
	seg := segs[0]
	rest := segs[1:]

	switch seg.Kind {
	case Key:
		obj, ok := cur.(jsonval.Object)
		if !ok || obj == nil {
			obj = jsonval.Object{}
		}
		if len(rest) == 0 {
			obj[seg.Key] = value
			return obj
		}
		child, present := obj[seg.Key]
		if !present {
			child = jsonval.Object{}
		}
		obj[seg.Key] = setAt(child, rest, value)
		return obj

	case Index:
		arr, ok := cur.(jsonval.Array)
		if !ok || arr == nil {
			// No array at this position. An existing object is kept;
			// otherwise (missing/absent node) an empty object is created
			// here regardless of the segment's kind, never an array,
			// even though this segment is numeric (spec §4.5, §9's
			// array-autovivification open question). The index
			// addresses a key in that object via its decimal string form.
			obj, isObj := cur.(jsonval.Object)
			if !isObj || obj == nil {
				obj = jsonval.Object{}
			}
			key := strconv.Itoa(seg.Index)
			if len(rest) == 0 {
				obj[key] = value
				return obj
			}
			child, present := obj[key]
			if !present {
				child = jsonval.Object{}
			}
			obj[key] = setAt(child, rest, value)
			return obj
		}
		if seg.Index >= len(arr) {
			grown := make(jsonval.Array, seg.Index+1)
			copy(grown, arr)
			for i := len(arr); i < seg.Index; i++ {
				grown[i] = jsonval.Object{}
			}
			arr = grown
		}
		if len(rest) == 0 {
			arr[seg.Index] = value
			return arr
		}
		child := arr[seg.Index]
		if child == nil {
			child = jsonval.Object{}
		}
		arr[seg.Index] = setAt(child, rest, value)
		return arr
	}

	// Unreachable: Kind is either Key or Index.
	return value
}

// ApplyOrdered applies a sequence of (path, value) sets to doc in order,
// each observing the effect of the previous one, as required for a
// TVar's Patch write-plan (spec §3, §4.5: "later patches may observe
// earlier ones").
func ApplyOrdered(doc jsonval.Value, sets []PathValue) jsonval.Value {
	cur := doc
	for _, pv := range sets {
		cur = Set(cur, pv.Path, pv.Value)
	}
	return cur
}

// PathValue pairs a normalized Path with the value to assign there.
type PathValue struct {
	Path  Path
	Value jsonval.Value
}
