package iprefer

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	perr "awardarchive/internal/platform/errors"
)

// HotelLink is one directory entry pointing at a hotel page
type HotelLink struct {
	Site  string
	Path  string
	Title string
}

// URL returns the absolute hotel page URL
func (l HotelLink) URL() string { return l.Site + l.Path }

// HotelDetails is the flattened hotel record extracted from a hotel page
type HotelDetails struct {
	NID            int64
	Name           string
	URL            string
	CanonicalURL   string
	Code           string
	NumRooms       int64
	Country        string
	Title          string
	Description    string
	ChoicePoints   int64
	AverageRate    string
	SynxisID       string
	BookWithPoints bool
	BookWithChoice bool
}

// The directory page renders each hotel as a card whose button container
// wraps a single anchor. No HTML parser dependency exists in this stack, so
// a pair of anchored regexps extracts the cards
var (
	cardRe  = regexp.MustCompile(`(?s)<div[^>]*class="[^"]*directory-card__button__container[^"]*"[^>]*>(.*?)</div>`)
	hrefRe  = regexp.MustCompile(`<a[^>]*href="([^"]*)"[^>]*>`)
	titleRe = regexp.MustCompile(`<a[^>]*title="([^"]*)"[^>]*>`)
	nextRe  = regexp.MustCompile(`(?s)<script[^>]*id="__NEXT_DATA__"[^>]*>(.*?)</script>`)
)

// HotelDirectory lists every hotel the public directory links to
func (c *Client) HotelDirectory(ctx context.Context) ([]HotelLink, error) {
	body, err := c.get(ctx, c.opts.SiteURL+"/directory")
	if err != nil {
		return nil, err
	}

	var links []HotelLink
	for _, card := range cardRe.FindAllStringSubmatch(string(body), -1) {
		href := hrefRe.FindStringSubmatch(card[1])
		if href == nil || href[1] == "" {
			continue
		}
		title := ""
		if m := titleRe.FindStringSubmatch(card[1]); m != nil {
			title = strings.TrimSpace(m[1])
		}
		links = append(links, HotelLink{Site: c.opts.SiteURL, Path: href[1], Title: title})
	}
	c.log.Info().Int("hotels", len(links)).Msg("hotel directory fetched")
	return links, nil
}

// nextData is the subset of the page's __NEXT_DATA__ blob the record needs
type nextData struct {
	Props struct {
		PageProps struct {
			NodeContent struct {
				NID               json.Number `json:"nid"`
				DisplayTitle      string      `json:"fieldDisplayTitle"`
				ItemCode          string      `json:"fieldItemCode"`
				NumRooms          json.Number `json:"fieldNumRooms"`
				CountryName       string      `json:"fieldCountryName"`
				ChoicePointsValue json.Number `json:"choicePointsValue"`
				AvgRateDisplay    string      `json:"fieldAvgRateDisplay"`
				SynxisID          string      `json:"fieldSynxisId"`
				BookWithPoints    bool        `json:"fieldIPreferBookWithPoints"`
				BookWithChoice    bool        `json:"participatesInChoicePoints"`
			} `json:"nodeContent"`
			MetaTags struct {
				CanonicalURL string `json:"canonical_url"`
				Title        string `json:"title"`
				Description  string `json:"description"`
			} `json:"metaTags"`
		} `json:"pageProps"`
	} `json:"props"`
}

// HotelDetails fetches one hotel page and extracts its embedded JSON state
func (c *Client) HotelDetails(ctx context.Context, pageURL string) (HotelDetails, error) {
	body, err := c.get(ctx, pageURL)
	if err != nil {
		return HotelDetails{}, err
	}

	scripts := nextRe.FindAllStringSubmatch(string(body), -1)
	if len(scripts) != 1 {
		return HotelDetails{}, perr.InvalidArgf("expected 1 __NEXT_DATA__ script, found %d at %s", len(scripts), pageURL)
	}

	var data nextData
	if err := json.Unmarshal([]byte(scripts[0][1]), &data); err != nil {
		return HotelDetails{}, perr.Wrapf(err, perr.ErrorCodeJSON, "iprefer decode hotel page failed")
	}

	content := data.Props.PageProps.NodeContent
	meta := data.Props.PageProps.MetaTags
	return HotelDetails{
		NID:            numToInt(content.NID),
		Name:           content.DisplayTitle,
		URL:            pageURL,
		CanonicalURL:   meta.CanonicalURL,
		Code:           content.ItemCode,
		NumRooms:       numToInt(content.NumRooms),
		Country:        content.CountryName,
		Title:          meta.Title,
		Description:    meta.Description,
		ChoicePoints:   numToInt(content.ChoicePointsValue),
		AverageRate:    content.AvgRateDisplay,
		SynxisID:       content.SynxisID,
		BookWithPoints: content.BookWithPoints,
		BookWithChoice: content.BookWithChoice,
	}, nil
}

func numToInt(n json.Number) int64 {
	if n == "" {
		return 0
	}
	v, err := n.Int64()
	if err != nil {
		if f, ferr := n.Float64(); ferr == nil {
			return int64(f)
		}
		return 0
	}
	return v
}
