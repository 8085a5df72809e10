package fetcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/japanese"
)

type testItem struct {
	Title string `xml:"title"`
	Link  string `xml:"link"`
}

const rssDoc = `<?xml version="1.0" encoding="UTF-8"?>
<rss><channel><title>feed</title>
<item><title>one</title><link>https://e.com/1</link></item>
<item><title>two</title><link>https://e.com/2</link></item>
</channel></rss>`

func TestDecodeElements(t *testing.T) {
	items, err := DecodeElements[testItem]([]byte(rssDoc), "item")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "two", items[1].Title)
	assert.Equal(t, "https://e.com/1", items[0].Link)
}

func TestDecodeElements_ShiftJIS(t *testing.T) {
	body := `<?xml version="1.0" encoding="Shift_JIS"?><rss><item><title>自家歯牙移植</title></item></rss>`
	encoded, err := japanese.ShiftJIS.NewEncoder().String(body)
	require.NoError(t, err)

	items, err := DecodeElements[testItem]([]byte(encoded), "item")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "自家歯牙移植", items[0].Title)
}

func TestDecodeElements_UnknownCharset(t *testing.T) {
	body := `<?xml version="1.0" encoding="x-made-up"?><rss><item><title>a</title></item></rss>`
	_, err := DecodeElements[testItem]([]byte(body), "item")
	assert.Error(t, err)
}

func TestDecodeXML(t *testing.T) {
	var doc struct {
		Items []testItem `xml:"channel>item"`
	}
	require.NoError(t, DecodeXML([]byte(rssDoc), &doc))
	assert.Len(t, doc.Items, 2)
}
