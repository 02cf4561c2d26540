package parsers_test

import (
	"errors"
	"testing"

	"law_arch/internal/citation"
	"law_arch/internal/config"
	"law_arch/internal/errs"
	"law_arch/internal/models"
	"law_arch/internal/parsers"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ohioPage = `<html><head><title>Section 5747.02 | Tax rates</title></head>
<body><nav><a href="/">Home</a></nav>
<main>
<h1>Section 5747.02 | Tax rates.</h1>
<p>For the purpose of making the tax payable by taxpayers:</p>
<p>(A) For taxable years beginning in 2024, the rates are as follows.</p>
<p>(1) In August of each year, the commissioner shall adjust.</p>
<p>(2) The adjusted amounts apply.</p>
<p>(B) Nothing in this section applies to trusts.</p>
</main></body></html>`

func kindOf(err error) errs.Kind { return errs.KindOf(err) }

func TestHTMLParserBuildsOutline(t *testing.T) {
	p := &parsers.HTMLParser{ContentSelector: "main", TitleSelector: "h1"}
	c := citation.NewCode("us-oh", "57").WithSection("5747.02")

	s, err := p.ParseSection([]byte(ohioPage), c)
	require.NoError(t, err)

	assert.Equal(t, "Section 5747.02 | Tax rates.", s.Heading)
	assert.Equal(t, "For the purpose of making the tax payable by taxpayers:", s.PlainText())
	require.Len(t, s.Children, 2)

	a := s.Children[0]
	assert.Equal(t, "5747.02(A)", a.Citation.Section)
	assert.Equal(t, "For taxable years beginning in 2024, the rates are as follows.", a.PlainText())
	require.Len(t, a.Children, 2)
	assert.Equal(t, "5747.02(A)(1)", a.Children[0].Citation.Section)
	assert.Equal(t, "5747.02(A)(2)", a.Children[1].Citation.Section)
	assert.Equal(t, "5747.02(B)", s.Children[1].Citation.Section)

	assert.Equal(t, models.FormatHTML, a.Children[1].SourceFormat)
	assert.Len(t, s.RawChecksum, 64)
	assert.Equal(t, s.RawChecksum, a.Children[1].RawChecksum)

	again, err := p.ParseSection([]byte(ohioPage), c)
	require.NoError(t, err)
	assert.Equal(t, s, again)
}

func TestHTMLParserDegradesOnMissingContent(t *testing.T) {
	p := &parsers.HTMLParser{ContentSelector: "div.statute-content"}
	c := citation.NewCode("us-oh", "57").WithSection("5747.02")

	s, err := p.ParseSection([]byte(ohioPage), c)
	require.Error(t, err)
	assert.Equal(t, errs.KindStructural, kindOf(err))
	require.NotNil(t, s)
	assert.Empty(t, s.Text)
	assert.Equal(t, "Section 5747.02 | Tax rates.", s.Heading)

	_, err = p.ParseSection([]byte("  "), c)
	assert.Equal(t, errs.KindMalformed, kindOf(err))
}

func TestHTMLParserKeepsHistoryApart(t *testing.T) {
	page := `<html><body><main>
<h1>Section 5747.01 | Definitions.</h1>
<p>(A) "Adjusted gross income" means federal adjusted gross income.</p>
<div class="history"><p>Amended by 135th General Assembly File No. 12, HB 33.</p><p>Effective Date: 10-03-2023</p></div>
</main></body></html>`
	p := &parsers.HTMLParser{ContentSelector: "main", HistorySelector: "div.history"}
	c := citation.NewCode("us-oh", "57").WithSection("5747.01")

	s, err := p.ParseSection([]byte(page), c)
	require.NoError(t, err)
	assert.Equal(t, []models.TextSpan{
		{Text: "Amended by 135th General Assembly File No. 12, HB 33."},
		{Text: "Effective Date: 10-03-2023"},
	}, s.History)
	require.Len(t, s.Children, 1)
	assert.Equal(t, `"Adjusted gross income" means federal adjusted gross income.`, s.Children[0].PlainText())
	for d := range flatten(s) {
		assert.NotContains(t, d.PlainText(), "Effective Date")
	}

	plain := &parsers.HTMLParser{ContentSelector: "main"}
	s, err = plain.ParseSection([]byte(page), c)
	require.NoError(t, err)
	assert.Empty(t, s.History)
}

func flatten(s *models.Section) map[*models.Section]bool {
	out := map[*models.Section]bool{s: true}
	for _, c := range s.Children {
		for d := range flatten(c) {
			out[d] = true
		}
	}
	return out
}

const clmlSection = `<?xml version="1.0" encoding="UTF-8"?>
<Legislation xmlns="http://www.legislation.gov.uk/namespaces/legislation"
  xmlns:ukm="http://www.legislation.gov.uk/namespaces/metadata"
  xmlns:dc="http://purl.org/dc/elements/1.1/">
<ukm:Metadata>
  <dc:title>Income Tax (Earnings and Pensions) Act 2003</dc:title>
  <ukm:Statistics><ukm:BodyParagraphs Value="725"/></ukm:Statistics>
</ukm:Metadata>
<Primary><Body>
<P1group><Title>Charge to tax on employment income</Title>
<P1 id="section-6"><Pnumber>6</Pnumber><P1para>
  <P2><Pnumber>1</Pnumber><P2para><Text>The charge to tax on employment income is a charge to tax on general earnings.</Text></P2para></P2>
  <P2><Pnumber>2</Pnumber><P2para><Text>Employment income is charged as follows:</Text>
    <P3><Pnumber>a</Pnumber><P3para><Text>general earnings;</Text></P3para></P3>
  </P2para></P2>
</P1para></P1>
</P1group>
</Body></Primary>
</Legislation>`

func TestCLMLParser(t *testing.T) {
	p := &parsers.CLMLParser{}
	c, err := citation.Parse("uk", "ukpga/2003/1/section/6")
	require.NoError(t, err)

	s, err := p.ParseSection([]byte(clmlSection), c)
	require.NoError(t, err)
	assert.Equal(t, "Charge to tax on employment income", s.Heading)
	require.Len(t, s.Children, 2)
	assert.Equal(t, "6(1)", s.Children[0].Citation.Section)
	assert.Equal(t, "Employment income is charged as follows:", s.Children[1].PlainText())
	require.Len(t, s.Children[1].Children, 1)
	assert.Equal(t, "6(2)(a)", s.Children[1].Children[0].Citation.Section)
	assert.Equal(t, models.FormatCLML, s.SourceFormat)

	act, err := p.ParseAct([]byte(clmlSection), c)
	require.NoError(t, err)
	assert.Equal(t, "Income Tax (Earnings and Pensions) Act 2003", act.Title)
	assert.Equal(t, 725, act.SectionCount)
	assert.False(t, act.Citation.IsSection())
}

func TestCLMLParserErrors(t *testing.T) {
	p := &parsers.CLMLParser{}
	c, _ := citation.Parse("uk", "ukpga/2003/1/section/6")

	_, err := p.ParseSection([]byte("this is not xml at all"), c)
	assert.Equal(t, errs.KindMalformed, kindOf(err))

	s, err := p.ParseSection([]byte(`<Legislation><Primary><Body/></Primary></Legislation>`), c)
	assert.Equal(t, errs.KindStructural, kindOf(err))
	require.NotNil(t, s)
	assert.Empty(t, s.Text)
}

const uslmTitle = `<uscDoc xmlns="http://xml.house.gov/schemas/uslm/1.0"><main><title><num value="26">Title 26</num>
<section identifier="/us/usc/t26/s32"><num value="32">§ 32.</num><heading>Earned income</heading>
  <subsection identifier="/us/usc/t26/s32/a"><num value="a">(a)</num><heading>Allowance of credit</heading>
    <paragraph><num value="1">(1)</num><heading>In general</heading><content>In the case of an eligible individual, there shall be allowed a credit.</content></paragraph>
  </subsection>
</section>
<section identifier="/us/usc/t26/s33"><num value="33">§ 33.</num><heading>Taxes withheld at source on nonresident aliens</heading>
  <content>There shall be allowed as a credit the amount of tax withheld.</content>
</section>
</title></main></uscDoc>`

func TestUSLMParser(t *testing.T) {
	p := &parsers.USLMParser{}
	title := citation.NewCode("us", "26")

	s, err := p.ParseSection([]byte(uslmTitle), title.WithSection("32"))
	require.NoError(t, err)
	assert.Equal(t, "Earned income", s.Heading)
	require.Len(t, s.Children, 1)
	sub := s.Children[0]
	assert.Equal(t, "32(a)", sub.Citation.Section)
	assert.Equal(t, "Allowance of credit", sub.Heading)
	require.Len(t, sub.Children, 1)
	assert.Equal(t, "In the case of an eligible individual, there shall be allowed a credit.", sub.Children[0].PlainText())

	sections, err := p.ParseDocument([]byte(uslmTitle), title)
	require.NoError(t, err)
	require.Len(t, sections, 2)
	assert.Equal(t, "26 U.S.C. § 33", sections[1].Citation.String())
	assert.Equal(t, 2, sections[1].Position)

	missing, err := p.ParseSection([]byte(uslmTitle), title.WithSection("99"))
	assert.Equal(t, errs.KindStructural, kindOf(err))
	assert.Empty(t, missing.Text)
}

const coloradoText = `COLORADO REVISED STATUTES 2024
39-22-103. Definitions. As used in this article, unless the context otherwise requires:
(1) "Fiduciary" means a guardian, trustee,
executor, or administrator.
(2) "Individual" means a natural person.

39-22-104. Income tax imposed on individuals, estates, and trusts.
(1) A tax is imposed on the federal taxable income of every individual.
`

func TestSynthesizeSections(t *testing.T) {
	act := citation.NewCode("us-co", "39")
	sections := parsers.SynthesizeSections(coloradoText, act)
	require.Len(t, sections, 2)

	defs := sections[0]
	assert.Equal(t, "39-22-103", defs.Citation.Section)
	assert.Equal(t, "Definitions", defs.Heading)
	assert.Equal(t, "As used in this article, unless the context otherwise requires:", defs.PlainText())
	require.Len(t, defs.Children, 2)
	assert.Equal(t, `"Fiduciary" means a guardian, trustee, executor, or administrator.`, defs.Children[0].PlainText())
	assert.Equal(t, "39-22-103(2)", defs.Children[1].Citation.Section)

	imposed := sections[1]
	assert.Equal(t, "Income tax imposed on individuals, estates, and trusts", imposed.Heading)
	assert.Equal(t, 2, imposed.Position)
	require.Len(t, imposed.Children, 1)
}

func TestSynthesizeGuidanceSections(t *testing.T) {
	act := citation.NewAct("us-irs", "rp", 2024, "2024-40")
	text := "Rev. Proc. 2024-40\nSECTION 1. PURPOSE\nThis revenue procedure sets forth inflation adjustments.\nSECTION 2. CHANGES\nThe changes are listed below.\n"
	sections := parsers.SynthesizeSections(text, act)
	require.Len(t, sections, 2)
	assert.Equal(t, "Rev. Proc. 2024-40 § 1", sections[0].Citation.String())
	assert.Equal(t, "PURPOSE", sections[0].Heading)
}

func TestPDFParserRejectsNonPDF(t *testing.T) {
	p := &parsers.PDFParser{}
	_, err := p.ParseDocument([]byte("<html>not a pdf</html>"), citation.NewCode("us-co", "39"))
	assert.Equal(t, errs.KindMalformed, kindOf(err))

	_, err = p.ParseDocument([]byte("%PDF-1.4 truncated"), citation.NewCode("us-co", "39"))
	assert.Equal(t, errs.KindMalformed, kindOf(err))
}

func TestJSONParser(t *testing.T) {
	p := &parsers.JSONParser{}
	c := citation.NewCode("us-md", "tg").WithSection("10-105")
	raw := `{"result":{"heading":"Rates","text":["First.","Second."],"children":[{"section":"a","text":"Alpha"},{"section":"(b)","text":"Beta"}]}}`

	s, err := p.ParseSection([]byte(raw), c)
	require.NoError(t, err)
	assert.Equal(t, "Rates", s.Heading)
	assert.Equal(t, "First.\n\nSecond.", s.PlainText())
	require.Len(t, s.Children, 2)
	assert.Equal(t, "10-105(b)", s.Children[1].Citation.Section)

	_, err = p.ParseSection([]byte(`[1,2]`), c)
	assert.Equal(t, errs.KindMalformed, kindOf(err))

	degraded, err := p.ParseSection([]byte(`{"result":{}}`), c)
	assert.Equal(t, errs.KindStructural, kindOf(err))
	assert.NotNil(t, degraded)

	doc := `{"documents":{"items":[{"section":"1","title":"One"},{"section":"2","title":"Two"},{"section":"1","title":"Dup"}]}}`
	sections, err := p.ParseDocument([]byte(doc), c.Parent())
	require.NoError(t, err)
	require.Len(t, sections, 2)
	assert.Equal(t, "One", sections[0].Heading)

	labelled := `{"documents":{"items":[{"section":"§ 5","title":"Five"},{"section":"§§ 12.3(a).","title":"Twelve"}]}}`
	sections, err = p.ParseDocument([]byte(labelled), c.Parent())
	require.NoError(t, err)
	require.Len(t, sections, 2)
	assert.Equal(t, "5", sections[0].Citation.Section)
	assert.Equal(t, "12.3(a)", sections[1].Citation.Section)
	for _, s := range sections {
		parsed, err := citation.Parse("us-md", s.Citation.String())
		require.NoError(t, err)
		assert.True(t, s.Citation.Equal(parsed))
	}
}

func TestParseDropListing(t *testing.T) {
	docs, err := parsers.ParseDropListing([]byte(`<a href="rp-24-40.pdf">rp-24-40.pdf</a>`), parsers.DropFilter{})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, models.GuidanceRevProc, docs[0].Type)
	assert.Equal(t, "2024-40", docs[0].Number)
	assert.Equal(t, 2024, docs[0].Year)
	assert.Equal(t, "rp-24-40.pdf", docs[0].Filename)
	assert.Equal(t, "Rev. Proc. 2024-40", docs[0].Citation.String())

	docs, err = parsers.ParseDropListing([]byte(`<a href="p1544.pdf">p1544.pdf</a>`), parsers.DropFilter{})
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestParseDropListingFilters(t *testing.T) {
	listing := []byte(`<html><body>
<a href="rp-24-40.pdf">rp-24-40.pdf</a>
<a href="rp-23-34.pdf">rp-23-34.pdf</a>
<a href="rr-24-15.pdf">rr-24-15.pdf</a>
<a href="n-24-78.pdf">n-24-78.pdf</a>
<a href="a-24-10.pdf">a-24-10.pdf</a>
<a href="/pub/irs-drop/rp-24-40.pdf">again</a>
<a href="i1040.pdf">i1040.pdf</a>
</body></html>`)

	docs, err := parsers.ParseDropListing(listing, parsers.DropFilter{BaseURL: "https://www.irs.gov/pub/irs-drop/"})
	require.NoError(t, err)
	assert.Len(t, docs, 5)
	assert.Equal(t, "https://www.irs.gov/pub/irs-drop/rp-24-40.pdf", docs[0].URL)

	docs, _ = parsers.ParseDropListing(listing, parsers.DropFilter{Year: 2024})
	assert.Len(t, docs, 4)

	docs, _ = parsers.ParseDropListing(listing, parsers.DropFilter{Types: []string{string(models.GuidanceRevProc)}})
	require.Len(t, docs, 2)
	assert.Equal(t, "rp", parsers.GuidanceSeries(docs[1].Type))
}

func TestRegistryForConfig(t *testing.T) {
	r := parsers.NewRegistry()

	p, err := r.ForConfig(config.SourceConfig{Jurisdiction: "uk", SourceType: config.SourceXML})
	require.NoError(t, err)
	assert.IsType(t, &parsers.CLMLParser{}, p)

	p, err = r.ForConfig(config.SourceConfig{Jurisdiction: "us", SourceType: config.SourceXML, Parser: "uslm"})
	require.NoError(t, err)
	assert.Equal(t, models.FormatUSLM, p.Format())

	p, err = r.ForConfig(config.SourceConfig{Jurisdiction: "us-oh", SourceType: config.SourceHTML, ContentSelector: "main", HistorySelector: "div.history"})
	require.NoError(t, err)
	html, ok := p.(*parsers.HTMLParser)
	require.True(t, ok)
	assert.Equal(t, "main", html.ContentSelector)
	assert.Equal(t, "div.history", html.HistorySelector)

	_, err = r.ForConfig(config.SourceConfig{Jurisdiction: "us-xx", SourceType: config.SourceHTML, Parser: "legacy_xx"})
	var configErr *errs.ConfigError
	assert.True(t, errors.As(err, &configErr))

	r.Register("legacy_xx", &parsers.JSONParser{})
	_, err = r.ForConfig(config.SourceConfig{Jurisdiction: "us-xx", SourceType: config.SourceHTML, Parser: "legacy_xx"})
	assert.NoError(t, err)
	assert.Contains(t, r.Names(), "legacy_xx")
}
