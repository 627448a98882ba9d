package audio

import (
	"context"
	"strings"

	"github.com/gocolly/colly"
	"github.com/samber/lo"
)

// discoverAudio visits an HTML page and returns absolute audio URLs in
// priority order: <audio src>, <audio><source src>, og:audio meta tags and
// finally plain links to audio files.
func (a *Acquirer) discoverAudio(ctx context.Context, pageURL string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c := colly.NewCollector(colly.UserAgent(userAgent))
	c.SetRequestTimeout(a.httpTimeout)

	var tags, metas, links []string
	abs := func(e *colly.HTMLElement, attr string) string {
		v := strings.TrimSpace(e.Attr(attr))
		if v == "" {
			return ""
		}
		return e.Request.AbsoluteURL(v)
	}

	c.OnHTML("audio[src]", func(e *colly.HTMLElement) {
		tags = append(tags, abs(e, "src"))
	})
	c.OnHTML("audio source[src]", func(e *colly.HTMLElement) {
		tags = append(tags, abs(e, "src"))
	})
	c.OnHTML(`meta[property="og:audio"], meta[property="og:audio:url"], meta[property="og:audio:secure_url"]`, func(e *colly.HTMLElement) {
		metas = append(metas, abs(e, "content"))
	})
	c.OnHTML("a[href]", func(e *colly.HTMLElement) {
		if href := abs(e, "href"); looksLikeAudioFile(href) {
			links = append(links, href)
		}
	})

	if err := c.Visit(pageURL); err != nil {
		return nil, err
	}

	all := append(append(tags, metas...), links...)
	return lo.Uniq(lo.Compact(all)), nil
}
