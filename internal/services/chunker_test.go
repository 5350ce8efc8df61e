package services

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegionSplitterLines(t *testing.T) {
	regions := NewRegionSplitter(0).Split([]string{
		"  UN1203 Gasoline  \n\n\tAcetone 10 L\n",
		"",
		"Dry ice",
	})

	require.Len(t, regions, 3)
	assert.Equal(t, "UN1203 Gasoline", regions[0].Text)
	assert.Equal(t, 1, regions[0].PageNumber)
	assert.Equal(t, "Acetone 10 L", regions[1].Text)
	assert.Equal(t, 1, regions[1].PageNumber)
	assert.Equal(t, "Dry ice", regions[2].Text)
	assert.Equal(t, 3, regions[2].PageNumber)
}

func TestRegionSplitterLongLine(t *testing.T) {
	line := "Flammable liquid, n.o.s. in drums. Keep away from heat. Ammonium nitrate in bags; stow separately."
	regions := NewRegionSplitter(40).Split([]string{line})

	require.Len(t, regions, 4)
	assert.Equal(t, "Flammable liquid, n.o.s. in drums.", regions[0].Text)
	assert.Equal(t, "Keep away from heat.", regions[1].Text)
	assert.Equal(t, "Ammonium nitrate in bags;", regions[2].Text)
	assert.Equal(t, "stow separately.", regions[3].Text)
}

func TestSplitIntoSentencesKeepsAbbreviations(t *testing.T) {
	assert.Equal(t,
		[]string{"Corrosive liquid, n.o.s., UN1760.", "Class 8"},
		splitIntoSentences("Corrosive liquid, n.o.s., UN1760. Class 8"))
}

func TestDocumentParserPlainText(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "manifest.txt")
	require.NoError(t, os.WriteFile(path, []byte("UN1203 Gasoline\f  \nUN1090 Acetone\n"), 0o644))

	doc, err := NewDocumentParser().ExtractPages(path)
	require.NoError(t, err)
	assert.Equal(t, MethodPlainText, doc.Method)
	assert.Equal(t, 2, doc.PageCount)
	assert.Equal(t, "UN1203 Gasoline", doc.Pages[0])
	assert.Equal(t, len("UN1203 Gasoline")+len("  \nUN1090 Acetone\n"), doc.TextLength())
}

func TestDocumentParserErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := NewDocumentParser().ExtractPages(filepath.Join(dir, "missing.txt"))
	assert.Error(t, err)

	blank := filepath.Join(dir, "blank.txt")
	require.NoError(t, os.WriteFile(blank, []byte(" \n\f\n "), 0o644))
	_, err = NewDocumentParser().ExtractPages(blank)
	assert.ErrorIs(t, err, ErrNoTextContent)

	notPDF := filepath.Join(dir, "fake.pdf")
	require.NoError(t, os.WriteFile(notPDF, []byte(strings.Repeat("x", 64)), 0o644))
	_, err = NewDocumentParser().ExtractPages(notPDF)
	assert.Error(t, err)
}

func TestCleanText(t *testing.T) {
	assert.Equal(t, "a\nb", CleanText("  a \n\n\t\n b  "))
}
