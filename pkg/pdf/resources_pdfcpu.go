package pdf

import (
	"fmt"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/font"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// pdfcpuResources resolves fonts and XObjects of a resource dictionary on
// first use. Lookups run under the document lock.
type pdfcpuResources struct {
	doc    *PDFDocument
	obj    types.Object
	dict   types.Dict
	parent *pdfcpuResources
	depth  int

	resolved bool
	fonts    map[string]*Font
	xobjects map[string]*XObject
}

func newPDFCPUResources(doc *PDFDocument, obj types.Object, parent *pdfcpuResources, depth int) *pdfcpuResources {
	return &pdfcpuResources{
		doc:      doc,
		obj:      obj,
		parent:   parent,
		depth:    depth,
		fonts:    make(map[string]*Font),
		xobjects: make(map[string]*XObject),
	}
}

func (r *pdfcpuResources) resolve() types.Dict {
	if !r.resolved {
		r.resolved = true
		if r.obj != nil {
			if dict, err := r.doc.ctx.DereferenceDict(deref(r.obj)); err == nil {
				r.dict = dict
			}
		}
	}
	return r.dict
}

func (r *pdfcpuResources) entry(category, name string) types.Object {
	dict := r.resolve()
	if dict == nil {
		return nil
	}
	sub, err := r.doc.ctx.DereferenceDict(deref(dict[category]))
	if err != nil || sub == nil {
		return nil
	}
	return sub[name]
}

// Font returns the font registered under name, searching enclosing resources
// for forms that do not declare their own
func (r *pdfcpuResources) Font(name string) (*Font, error) {
	r.doc.mu.Lock()
	defer r.doc.mu.Unlock()
	return r.font(name)
}

func (r *pdfcpuResources) font(name string) (*Font, error) {
	if f, ok := r.fonts[name]; ok {
		return f, nil
	}
	obj := r.entry("Font", name)
	if obj == nil {
		if r.parent != nil {
			return r.parent.font(name)
		}
		return nil, fmt.Errorf("font %s not found in resources", name)
	}
	f, err := r.doc.loadFont(name, obj)
	if err != nil {
		return nil, err
	}
	r.fonts[name] = f
	return f, nil
}

// XObject returns the external object registered under name
func (r *pdfcpuResources) XObject(name string) (*XObject, error) {
	r.doc.mu.Lock()
	defer r.doc.mu.Unlock()
	return r.xobject(name)
}

func (r *pdfcpuResources) xobject(name string) (*XObject, error) {
	if x, ok := r.xobjects[name]; ok {
		return x, nil
	}
	obj := r.entry("XObject", name)
	if obj == nil {
		if r.parent != nil {
			return r.parent.xobject(name)
		}
		return nil, fmt.Errorf("xobject %s not found in resources", name)
	}
	x, err := r.doc.loadXObject(name, obj, r)
	if err != nil {
		return nil, err
	}
	r.xobjects[name] = x
	return x, nil
}

func (d *PDFDocument) loadXObject(name string, obj types.Object, parent *pdfcpuResources) (*XObject, error) {
	sd, _, err := d.ctx.DereferenceStreamDict(deref(obj))
	if err != nil {
		return nil, fmt.Errorf("failed to dereference xobject %s: %w", name, err)
	}
	if sd == nil {
		return nil, fmt.Errorf("xobject %s is not a stream", name)
	}

	x := &XObject{
		Name:    name,
		Subtype: d.name(sd.Dict["Subtype"]),
		Matrix:  IdentityMatrix(),
		source:  sd.Dict,
	}
	if !x.IsForm() {
		return x, nil
	}

	if box := d.numbers(sd.Dict["BBox"]); len(box) == 4 {
		x.BBox = NewRect(box[0], box[1], box[2], box[3])
	}
	if m := d.numbers(sd.Dict["Matrix"]); len(m) == 6 {
		x.Matrix = NewMatrix([6]float64(m))
	}

	content, err := decodeStream(sd)
	if err != nil {
		return nil, fmt.Errorf("failed to decode form %s: %w", name, err)
	}
	x.Content = content

	if res, ok := sd.Dict["Resources"]; ok && res != nil {
		x.Resources = newPDFCPUResources(d, res, parent, parent.depth+1)
	} else {
		x.Resources = parent
	}
	return x, nil
}

func (d *PDFDocument) loadFont(name string, obj types.Object) (*Font, error) {
	dict, err := d.ctx.DereferenceDict(deref(obj))
	if err != nil {
		return nil, fmt.Errorf("failed to dereference font %s: %w", name, err)
	}
	if dict == nil {
		return nil, fmt.Errorf("font %s is not a dictionary", name)
	}

	f := &Font{
		Name:       name,
		BaseFont:   d.name(dict["BaseFont"]),
		Subtype:    d.name(dict["Subtype"]),
		FontMatrix: Scale(0.001, 0.001),
		CodeLen:    1,
	}

	if f.IsComposite() {
		d.loadCIDMetrics(f, dict)
	} else {
		d.loadSimpleMetrics(f, dict)
	}

	if sd, _, err := d.ctx.DereferenceStreamDict(deref(dict["ToUnicode"])); err == nil && sd != nil {
		if data, err := decodeStream(sd); err == nil {
			if cmap, err := ParseToUnicodeCMap(data); err == nil && cmap.MappingCount() > 0 {
				f.ToUnicode = cmap
			}
		}
	}

	return f, nil
}

func (d *PDFDocument) loadSimpleMetrics(f *Font, dict types.Dict) {
	if f.Subtype == "Type3" {
		if m := d.numbers(dict["FontMatrix"]); len(m) == 6 {
			f.FontMatrix = NewMatrix([6]float64(m))
		}
	}

	if fc, ok := d.number(dict["FirstChar"]); ok {
		f.FirstChar = int(fc)
	}
	f.Widths = d.numbers(dict["Widths"])
	d.loadDescriptor(f, dict["FontDescriptor"])

	baseEncoding := "StandardEncoding"
	if f.Subtype == "TrueType" {
		baseEncoding = "WinAnsiEncoding"
	}
	var diffs []interface{}
	if enc, err := d.ctx.Dereference(deref(dict["Encoding"])); err == nil {
		switch v := enc.(type) {
		case types.Name:
			baseEncoding = string(v)
		case types.Dict:
			if base := d.name(v["BaseEncoding"]); base != "" {
				baseEncoding = base
			}
			if arr, err := d.ctx.DereferenceArray(deref(v["Differences"])); err == nil {
				for _, item := range arr {
					switch it := item.(type) {
					case types.Integer:
						diffs = append(diffs, int(it))
					case types.Float:
						diffs = append(diffs, int(it))
					case types.Name:
						diffs = append(diffs, string(it))
					}
				}
			}
		}
	}
	f.Encoding = NewSimpleEncoding(baseEncoding)
	if len(diffs) > 0 {
		f.Encoding.ApplyDifferences(diffs)
	}

	if len(f.Widths) == 0 {
		if core := coreFontName(f.BaseFont); core != "" {
			f.coreWidths = coreFontWidths(core)
			if f.Ascent == 0 && f.Descent == 0 {
				f.Ascent, f.Descent = coreFontExtent(core)
			}
		}
	}
}

func (d *PDFDocument) loadCIDMetrics(f *Font, dict types.Dict) {
	f.CodeLen = 2
	f.DefaultWidth = 1000

	descendants, err := d.ctx.DereferenceArray(deref(dict["DescendantFonts"]))
	if err != nil || len(descendants) == 0 {
		return
	}
	cid, err := d.ctx.DereferenceDict(deref(descendants[0]))
	if err != nil || cid == nil {
		return
	}

	if dw, ok := d.number(cid["DW"]); ok {
		f.DefaultWidth = dw
	}
	d.loadDescriptor(f, cid["FontDescriptor"])

	w, err := d.ctx.DereferenceArray(deref(cid["W"]))
	if err != nil {
		return
	}
	f.CIDWidths = make(map[uint32]float64)
	// Entries are either "c [w1 w2 ...]" or "cFirst cLast w"
	for i := 0; i < len(w); {
		first, ok := d.number(w[i])
		if !ok || i+1 >= len(w) {
			break
		}
		if arr, err := d.ctx.DereferenceArray(deref(w[i+1])); err == nil && arr != nil {
			for j, item := range arr {
				c := first + float64(j)
				if c < 0 || c > maxCID {
					break
				}
				if width, ok := d.number(item); ok {
					f.CIDWidths[uint32(c)] = width
				}
			}
			i += 2
			continue
		}
		if i+2 >= len(w) {
			break
		}
		last, ok1 := d.number(w[i+1])
		width, ok2 := d.number(w[i+2])
		if ok1 && ok2 {
			if lo, hi, ok := cidRange(first, last); ok {
				for c := lo; c <= hi; c++ {
					f.CIDWidths[c] = width
				}
			}
		}
		i += 3
	}
}

// CIDs are two-byte values
const maxCID = 0xFFFF

// cidRange clamps a "cFirst cLast" pair of a W array to valid CIDs.
// Reversed or entirely out of range pairs are rejected.
func cidRange(first, last float64) (lo, hi uint32, ok bool) {
	if last < first || last < 0 || first > maxCID {
		return 0, 0, false
	}
	return uint32(max(first, 0)), uint32(min(last, maxCID)), true
}

func (d *PDFDocument) loadDescriptor(f *Font, obj types.Object) {
	fd, err := d.ctx.DereferenceDict(deref(obj))
	if err != nil || fd == nil {
		return
	}
	if v, ok := d.number(fd["Ascent"]); ok {
		f.Ascent = v
	}
	if v, ok := d.number(fd["Descent"]); ok {
		f.Descent = v
	}
	if v, ok := d.number(fd["MissingWidth"]); ok && !f.IsComposite() {
		f.DefaultWidth = v
	}
}

func (d *PDFDocument) number(o types.Object) (float64, bool) {
	obj, err := d.ctx.Dereference(deref(o))
	if err != nil {
		return 0, false
	}
	switch v := obj.(type) {
	case types.Integer:
		return float64(v), true
	case types.Float:
		return float64(v), true
	}
	return 0, false
}

func (d *PDFDocument) numbers(o types.Object) []float64 {
	arr, err := d.ctx.DereferenceArray(deref(o))
	if err != nil || arr == nil {
		return nil
	}
	out := make([]float64, len(arr))
	for i, item := range arr {
		out[i], _ = d.number(item)
	}
	return out
}

func (d *PDFDocument) name(o types.Object) string {
	obj, err := d.ctx.Dereference(deref(o))
	if err != nil {
		return ""
	}
	if n, ok := obj.(types.Name); ok {
		return string(n)
	}
	return ""
}

var coreFontAliases = map[string]string{
	"Arial":                    "Helvetica",
	"ArialMT":                  "Helvetica",
	"Arial,Bold":               "Helvetica-Bold",
	"Arial-BoldMT":             "Helvetica-Bold",
	"Arial,Italic":             "Helvetica-Oblique",
	"Arial-ItalicMT":           "Helvetica-Oblique",
	"Arial,BoldItalic":         "Helvetica-BoldOblique",
	"Arial-BoldItalicMT":       "Helvetica-BoldOblique",
	"TimesNewRoman":            "Times-Roman",
	"TimesNewRomanPSMT":        "Times-Roman",
	"TimesNewRoman,Bold":       "Times-Bold",
	"TimesNewRomanPS-BoldMT":   "Times-Bold",
	"TimesNewRoman,Italic":     "Times-Italic",
	"TimesNewRomanPS-ItalicMT": "Times-Italic",
	"CourierNew":               "Courier",
	"CourierNewPSMT":           "Courier",
	"CourierNew,Bold":          "Courier-Bold",
}

// coreFontName maps a BaseFont to one of the standard 14 font names, or ""
func coreFontName(baseFont string) string {
	if i := strings.IndexByte(baseFont, '+'); i == 6 {
		baseFont = baseFont[i+1:]
	}
	if alias, ok := coreFontAliases[baseFont]; ok {
		baseFont = alias
	}
	if font.IsCoreFont(baseFont) {
		return baseFont
	}
	return ""
}

// coreFontWidths reads glyph widths of a standard 14 font from pdfcpu's metrics
func coreFontWidths(name string) map[byte]float64 {
	widths := make(map[byte]float64, 224)
	for c := 32; c < 256; c++ {
		if w, ok := coreCharWidth(name, rune(c)); ok {
			widths[byte(c)] = w
		}
	}
	return widths
}

func coreCharWidth(name string, r rune) (w float64, ok bool) {
	defer func() {
		if recover() != nil {
			w, ok = 0, false
		}
	}()
	// Codes index the WinAnsi table directly
	return float64(font.CharWidth(name, r)), true
}

func coreFontExtent(name string) (float64, float64) {
	switch {
	case strings.HasPrefix(name, "Helvetica"):
		return 718, -207
	case strings.HasPrefix(name, "Times"):
		return 683, -217
	case strings.HasPrefix(name, "Courier"):
		return 629, -157
	}
	return 0, 0
}
