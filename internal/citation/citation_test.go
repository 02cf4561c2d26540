package citation_test

import (
	"errors"
	"sort"
	"testing"

	"law_arch/internal/citation"
	"law_arch/internal/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRenderRoundTrip(t *testing.T) {
	tests := []struct {
		jurisdiction string
		raw          string
		want         citation.Citation
	}{
		{"us-va", "58.1 § 58.1-3200", citation.Citation{Jurisdiction: "us-va", Type: citation.TypeSection, Number: "58.1", Section: "58.1-3200"}},
		{"us-mn", "ch. 290A", citation.Citation{Jurisdiction: "us-mn", Type: citation.TypeChapter, Number: "290A"}},
		{"us-md", "tg", citation.Citation{Jurisdiction: "us-md", Type: citation.TypeCode, Number: "tg"}},
		{"us-oh", "§ 5747.02", citation.Citation{Jurisdiction: "us-oh", Type: citation.TypeSection, Section: "5747.02"}},
		{"us-ca", "RTC § 12.3(a)(1)", citation.Citation{Jurisdiction: "us-ca", Type: citation.TypeSection, Number: "RTC", Section: "12.3(a)(1)"}},
		{"us-mn", "290A § 290A.03", citation.Citation{Jurisdiction: "us-mn", Type: citation.TypeSection, Number: "290A", Section: "290A.03"}},
		{"us-ny", "Act 5 (2019)", citation.Citation{Jurisdiction: "us-ny", Type: citation.TypeAct, Year: 2019, Number: "5"}},
		{"us-mn", "ch. 290A § 290A.03", citation.Citation{Jurisdiction: "us-mn", Type: citation.TypeSection, Container: citation.TypeChapter, Number: "290A", Section: "290A.03"}},
		{"us-ny", "Act 5 (2019) § 3", citation.Citation{Jurisdiction: "us-ny", Type: citation.TypeSection, Container: citation.TypeAct, Year: 2019, Number: "5", Section: "3"}},
		{"us-ny", "Act 5 § 3", citation.Citation{Jurisdiction: "us-ny", Type: citation.TypeSection, Container: citation.TypeAct, Number: "5", Section: "3"}},
		{"us", "ch. 21", citation.Citation{Jurisdiction: "us", Type: citation.TypeChapter, Number: "21"}},
		{"us", "ch. 21 § 3101", citation.Citation{Jurisdiction: "us", Type: citation.TypeSection, Container: citation.TypeChapter, Number: "21", Section: "3101"}},
		{"us", "26 U.S.C. § 32", citation.Citation{Jurisdiction: "us", Type: citation.TypeSection, Number: "26", Section: "32"}},
		{"us", "26 U.S.C.", citation.Citation{Jurisdiction: "us", Type: citation.TypeCode, Number: "26"}},
		{"uk", "ukpga/2003/1", citation.Citation{Jurisdiction: "uk", Type: citation.TypeAct, Series: "ukpga", Year: 2003, Number: "1"}},
		{"uk", "ukpga/2007/3/section/58", citation.Citation{Jurisdiction: "uk", Type: citation.TypeSection, Series: "ukpga", Year: 2007, Number: "3", Section: "58"}},
		{"us-irs", "Rev. Proc. 2024-40", citation.Citation{Jurisdiction: "us-irs", Type: citation.TypeAct, Series: "rp", Year: 2024, Number: "2024-40"}},
		{"us-irs", "Notice 2022-45 § 3.01", citation.Citation{Jurisdiction: "us-irs", Type: citation.TypeSection, Series: "n", Year: 2022, Number: "2022-45", Section: "3.01"}},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			c, err := citation.Parse(tt.jurisdiction, tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, c)
			assert.Equal(t, tt.raw, citation.Render(c))

			again, err := citation.Parse(tt.jurisdiction, citation.Render(c))
			require.NoError(t, err)
			assert.Equal(t, c, again)
		})
	}
}

func TestParseRejectsUnknownForms(t *testing.T) {
	for _, raw := range []string{"", "§", "ukpga//1", "58.1 §", "Rev. Proc. 24-40", "section one"} {
		jurisdiction := "us-va"
		if raw == "ukpga//1" {
			jurisdiction = "uk"
		}
		if raw == "Rev. Proc. 24-40" {
			jurisdiction = "us-irs"
		}
		_, err := citation.Parse(jurisdiction, raw)
		var formatErr *errs.CitationFormatError
		require.True(t, errors.As(err, &formatErr), "raw %q", raw)
		assert.Equal(t, errs.KindCitation, errs.KindOf(err))
	}
}

func TestEqualNormalizes(t *testing.T) {
	a := citation.Citation{Jurisdiction: " US-CA ", Type: citation.TypeSection, Number: "RTC", Section: "12.3 (a)"}
	b := citation.Citation{Jurisdiction: "us-ca", Type: citation.TypeSection, Number: "RTC", Section: "12.3(a)"}
	assert.True(t, a.Equal(b))
	assert.Equal(t, a.Key(), b.Key())
	assert.False(t, a.Equal(b.WithSection("12.3(b)")))
}

func TestCompareIsNumericAware(t *testing.T) {
	code := citation.NewCode("us-oh", "5747")
	sections := []citation.Citation{
		code.WithSection("10"),
		code.WithSection("9"),
		code.WithSection("9A"),
		code.WithSection("2.1"),
		code.WithSection("2"),
		code.WithSection("100"),
	}
	sort.Slice(sections, func(i, j int) bool { return citation.Compare(sections[i], sections[j]) < 0 })

	var got []string
	for _, s := range sections {
		got = append(got, s.Section)
	}
	assert.Equal(t, []string{"2", "2.1", "9", "9A", "10", "100"}, got)
	assert.Equal(t, 0, citation.Compare(code, citation.NewCode("US-OH", "5747")))
}

func TestParentDropsSection(t *testing.T) {
	act := citation.NewAct("uk", "ukpga", 2003, "1")
	sec := act.WithSection("5")
	assert.Equal(t, citation.TypeSection, sec.Type)
	assert.Equal(t, act, sec.Parent())

	code := citation.NewCode("us-va", "58.1")
	assert.Equal(t, code, code.WithSection("58.1-3200").Parent())

	// Containers keep their type and year through a section.
	for _, container := range []citation.Citation{
		citation.NewChapter("us-mn", "290A"),
		citation.NewAct("us-ny", "", 2019, "5"),
		citation.NewChapter("us", "21"),
	} {
		sec := container.WithSection("3")
		assert.Equal(t, container, sec.Parent())
		assert.Equal(t, container.Key(), sec.Parent().Key())
		assert.NotEqual(t, code.WithSection("3").Key(), sec.Key())

		parsed, err := citation.Parse(sec.Jurisdiction, sec.String())
		require.NoError(t, err)
		assert.True(t, sec.Equal(parsed), "%s", sec)
		parsed, err = citation.Parse(container.Jurisdiction, container.String())
		require.NoError(t, err)
		assert.True(t, container.Equal(parsed), "%s", container)
	}
	assert.Equal(t, "ch. 21", citation.NewChapter("us", "21").String())
	assert.False(t, citation.NewChapter("us-mn", "290A").WithSection("1").Equal(citation.NewCode("us-mn", "290A").WithSection("1")))
}

func TestGuidanceLabel(t *testing.T) {
	assert.Equal(t, "Rev. Proc.", citation.GuidanceLabel("RP"))
	assert.Equal(t, "", citation.GuidanceLabel("p"))
}
