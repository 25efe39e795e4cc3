package patents

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const searchFixture = `<html><body>
<article class="search-result-item">
  <a href="/patent/US11234567B2/en">Link</a>
  <h3>Anti-CLDN antibodies and methods of use</h3>
  <span class="assignee">Astellas Pharma Inc.</span>
  <span class="date">2019-05-20</span>
  <span class="date">2024-06-04</span>
  <span class="abstract">Antibodies binding claudin 18.2.</span>
</article>
<article class="search-result-item">
  <a href="/patent/EP3456789B1/en">Link</a>
  <h3>FLT3 inhibitor formulations</h3>
</article>
<article class="search-result-item">
  <a href="/about">kein Patent-Link</a>
</article>
</body></html>`

func TestParseSearchResults(t *testing.T) {
	records, err := parseSearchResults(strings.NewReader(searchFixture), 20, "https://patents.google.com")
	require.NoError(t, err)
	require.Len(t, records, 2)

	first := records[0]
	assert.Equal(t, "US11234567B2", first.PatentNumber)
	assert.Equal(t, "Anti-CLDN antibodies and methods of use", first.Title)
	require.NotNil(t, first.Assignee)
	assert.Equal(t, "Astellas Pharma Inc.", *first.Assignee)
	require.NotNil(t, first.FilingDate)
	assert.Equal(t, "2019-05-20", first.FilingDate.Format("2006-01-02"))
	require.NotNil(t, first.GrantDate)
	assert.Equal(t, "2024-06-04", first.GrantDate.Format("2006-01-02"))
	require.NotNil(t, first.Abstract)
	assert.Equal(t, "https://patents.google.com/patent/US11234567B2", first.SourceURL)

	second := records[1]
	assert.Equal(t, "EP3456789B1", second.PatentNumber)
	assert.Nil(t, second.Assignee)
	assert.Nil(t, second.FilingDate)
}

func TestParseSearchResultsRespectsLimit(t *testing.T) {
	records, err := parseSearchResults(strings.NewReader(searchFixture), 1, "https://patents.google.com")
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

const detailFixture = `<html><body>
<h1 id="title">Anti-CLDN antibodies and methods of use</h1>
<section id="abstract"><div class="abstract">Antibodies binding claudin 18.2 and uses thereof.</div></section>
<dl>
  <dd itemprop="assigneeCurrent">Astellas Pharma Inc.</dd>
  <dd itemprop="filingDate">2019-05-20</dd>
  <dd itemprop="grantDate">2024-06-04</dd>
</dl>
<section id="claims">
  <div class="claim">1. An antibody...</div>
  <div class="claim">2. The antibody of claim 1...</div>
  <div class="claim">3. A pharmaceutical composition...</div>
</section>
</body></html>`

func TestParseDetailPage(t *testing.T) {
	rec, err := parseDetailPage(strings.NewReader(detailFixture), "US11234567B2", "https://patents.google.com")
	require.NoError(t, err)
	assert.Equal(t, "US11234567B2", rec.PatentNumber)
	assert.Equal(t, "Anti-CLDN antibodies and methods of use", rec.Title)
	require.NotNil(t, rec.Abstract)
	assert.Equal(t, "Antibodies binding claudin 18.2 and uses thereof.", *rec.Abstract)
	require.NotNil(t, rec.Assignee)
	assert.Equal(t, "Astellas Pharma Inc.", *rec.Assignee)
	require.NotNil(t, rec.FilingDate)
	assert.Equal(t, "2019-05-20", rec.FilingDate.Format("2006-01-02"))
	require.NotNil(t, rec.GrantDate)
	assert.Equal(t, "2024-06-04", rec.GrantDate.Format("2006-01-02"))
	require.NotNil(t, rec.ClaimsCount)
	assert.Equal(t, 3, *rec.ClaimsCount)
}
