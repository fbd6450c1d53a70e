package capture

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
)

// MaxSnapshotSize limits element snapshots to 512KB
const MaxSnapshotSize = 512 * 1024

// safeToken matches attribute values that can be embedded in a selector
// without escaping
var safeToken = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]*$`)

// Locator identifies an element within a page, by CSS path and XPath
type Locator struct {
	CSS   string `json:"css,omitempty"`
	XPath string `json:"xpath,omitempty"`
}

// Snapshotter sanitizes element snapshots and derives locators from them.
// Safe for concurrent use after construction.
type Snapshotter struct {
	policy *bluemonday.Policy
}

// NewSnapshotter builds the snapshot sanitization policy.
// The policy keeps structural attributes needed for locator derivation
// (id, class, name, data-* hooks) while stripping scripts, event handlers,
// and value attributes so typed content never survives in a stored snapshot.
func NewSnapshotter() *Snapshotter {
	p := bluemonday.UGCPolicy()
	p.AllowElements("form", "input", "select", "option", "button", "textarea", "label",
		"nav", "header", "footer", "main", "section", "article")
	p.AllowAttrs("id", "class", "name", "role", "title").Globally()
	p.AllowAttrs("aria-label", "aria-labelledby").Globally()
	p.AllowAttrs("type", "placeholder", "for", "action", "method").OnElements(
		"input", "select", "button", "textarea", "label", "form")
	p.AllowDataAttributes()

	return &Snapshotter{policy: p}
}

// Sanitize cleans a raw element snapshot for storage
func (s *Snapshotter) Sanitize(snapshot string) (string, error) {
	if err := validateSnapshot(snapshot); err != nil {
		return "", err
	}
	return s.policy.Sanitize(snapshot), nil
}

// DeriveLocator finds the action target inside a snapshot and builds a
// CSS path and XPath for it. The returned locator is verified against the
// snapshot before it is returned.
func (s *Snapshotter) DeriveLocator(snapshot string, target *Target) (Locator, error) {
	if err := validateSnapshot(snapshot); err != nil {
		return Locator{}, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(snapshot))
	if err != nil {
		return Locator{}, fmt.Errorf("parse snapshot: %w", err)
	}

	sel := findTarget(doc, target)
	if sel.Length() == 0 {
		return Locator{}, fmt.Errorf("snapshot contains no element")
	}

	loc := buildLocator(sel)

	found, err := s.ValidateLocator(snapshot, loc)
	if err != nil {
		return Locator{}, err
	}
	if !found {
		return Locator{}, fmt.Errorf("derived locator does not resolve in snapshot")
	}
	return loc, nil
}

// ValidateLocator reports whether every populated locator field resolves
// to at least one element in the snapshot. CSS goes through goquery,
// XPath through htmlquery.
func (s *Snapshotter) ValidateLocator(snapshot string, loc Locator) (bool, error) {
	if err := validateSnapshot(snapshot); err != nil {
		return false, err
	}
	if loc.CSS == "" && loc.XPath == "" {
		return false, fmt.Errorf("locator is empty")
	}

	if loc.CSS != "" {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(snapshot))
		if err != nil {
			return false, fmt.Errorf("parse snapshot: %w", err)
		}
		if doc.Find(loc.CSS).Length() == 0 {
			return false, nil
		}
	}

	if loc.XPath != "" {
		root, err := htmlquery.Parse(strings.NewReader(snapshot))
		if err != nil {
			return false, fmt.Errorf("parse snapshot: %w", err)
		}
		node, err := htmlquery.Query(root, loc.XPath)
		if err != nil {
			return false, fmt.Errorf("xpath query failed: %w", err)
		}
		if node == nil {
			return false, nil
		}
	}

	return true, nil
}

func validateSnapshot(snapshot string) error {
	if len(snapshot) == 0 {
		return fmt.Errorf("snapshot content required")
	}
	if len(snapshot) > MaxSnapshotSize {
		return fmt.Errorf("snapshot exceeds maximum size of %d bytes", MaxSnapshotSize)
	}
	return nil
}

// findTarget locates the action target inside the parsed snapshot, using
// the capture hints in order of reliability. Falls back to the fragment
// root element.
func findTarget(doc *goquery.Document, target *Target) *goquery.Selection {
	if target != nil {
		if target.Selector != "" {
			if sel := doc.Find(target.Selector).First(); sel.Length() > 0 {
				return sel
			}
		}
		if idAttr := target.Attributes["id"]; idAttr != "" && safeToken.MatchString(idAttr) {
			if sel := doc.Find("#" + idAttr).First(); sel.Length() > 0 {
				return sel
			}
		}
		if target.Tag != "" && target.Text != "" {
			want := strings.TrimSpace(target.Text)
			var match *goquery.Selection
			doc.Find(target.Tag).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
				if strings.TrimSpace(sel.Text()) == want {
					match = sel
					return false
				}
				return true
			})
			if match != nil {
				return match
			}
		}
		if target.Tag != "" {
			if sel := doc.Find(target.Tag).First(); sel.Length() > 0 {
				return sel
			}
		}
	}
	return doc.Find("body").Children().First()
}

// buildLocator derives CSS and XPath for the selected element.
// Stable attributes win over positional paths: id first, then test hooks,
// then form field names.
func buildLocator(sel *goquery.Selection) Locator {
	node := sel.Get(0)

	if idAttr := sel.AttrOr("id", ""); idAttr != "" && safeToken.MatchString(idAttr) {
		return Locator{
			CSS:   "#" + idAttr,
			XPath: fmt.Sprintf("//*[@id='%s']", idAttr),
		}
	}

	if testID := sel.AttrOr("data-testid", ""); testID != "" && safeToken.MatchString(testID) {
		return Locator{
			CSS:   fmt.Sprintf("[data-testid='%s']", testID),
			XPath: fmt.Sprintf("//*[@data-testid='%s']", testID),
		}
	}

	tag := goquery.NodeName(sel)
	if name := sel.AttrOr("name", ""); name != "" && safeToken.MatchString(name) {
		switch tag {
		case "input", "select", "textarea", "button":
			return Locator{
				CSS:   fmt.Sprintf("%s[name='%s']", tag, name),
				XPath: fmt.Sprintf("//%s[@name='%s']", tag, name),
			}
		}
	}

	return Locator{
		CSS:   cssPath(node),
		XPath: xpathPath(node),
	}
}

// cssPath builds a positional child path from body down to the node
func cssPath(node *html.Node) string {
	var segments []string
	for n := node; n != nil && n.Type == html.ElementNode && n.Data != "body" && n.Data != "html"; n = n.Parent {
		segments = append([]string{fmt.Sprintf("%s:nth-of-type(%d)", n.Data, siblingIndex(n))}, segments...)
	}
	return strings.Join(segments, " > ")
}

// xpathPath builds a positional XPath from body down to the node
func xpathPath(node *html.Node) string {
	var segments []string
	for n := node; n != nil && n.Type == html.ElementNode && n.Data != "html"; n = n.Parent {
		segments = append([]string{fmt.Sprintf("%s[%d]", n.Data, siblingIndex(n))}, segments...)
	}
	return "//" + strings.Join(segments, "/")
}

// siblingIndex returns the element's 1-based position among same-tag siblings
func siblingIndex(node *html.Node) int {
	pos := 1
	for sib := node.PrevSibling; sib != nil; sib = sib.PrevSibling {
		if sib.Type == html.ElementNode && sib.Data == node.Data {
			pos++
		}
	}
	return pos
}
