package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadLinesFromFileKeepsBlankPositions(t *testing.T) {
	path := writeTempFile(t, "sites.txt", "acme.com\n\n  https://beta.io  \n")

	lines, err := LoadLinesFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"acme.com", "", "https://beta.io"}, lines)
}

func TestReadCSVColumn(t *testing.T) {
	data := "\ufeffCompany,Website\nAcme,acme.com\nBeta,\nGamma\n"

	values, err := ReadCSVColumn(strings.NewReader(data), "WEBSITE")
	require.NoError(t, err)
	assert.Equal(t, []string{"acme.com", "", ""}, values)

	first, err := ReadCSVColumn(strings.NewReader(data), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"Acme", "Beta", "Gamma"}, first)

	_, err = ReadCSVColumn(strings.NewReader(data), "url")
	assert.Error(t, err)

	_, err = ReadCSVColumn(strings.NewReader(""), "")
	assert.Error(t, err)
}

func TestSheetCSVURL(t *testing.T) {
	got, err := SheetCSVURL("https://docs.google.com/spreadsheets/d/1AbC-xyz_09/edit#gid=0")
	require.NoError(t, err)
	assert.Equal(t, "https://docs.google.com/spreadsheets/d/1AbC-xyz_09/export?format=csv", got)

	got, err = SheetCSVURL("https://files.acme.com/sites.csv")
	require.NoError(t, err)
	assert.Equal(t, "https://files.acme.com/sites.csv", got)

	_, err = SheetCSVURL("https://docs.google.com/spreadsheets/u/0/")
	assert.Error(t, err)
}

func TestLoadSitesFromURLAndFiles(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("url\nacme.com\nbeta.io\n"))
	}))
	defer srv.Close()

	remote, err := LoadSites(context.Background(), srv.URL+"/list.csv", "url", srv.Client())
	require.NoError(t, err)
	assert.Equal(t, []string{"acme.com", "beta.io"}, remote)

	csvPath := writeTempFile(t, "sites.CSV", "site\nacme.com\n")
	local, err := LoadSites(context.Background(), csvPath, "site", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"acme.com"}, local)

	txtPath := writeTempFile(t, "sites.txt", "acme.com\n")
	lines, err := LoadSites(context.Background(), txtPath, "", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"acme.com"}, lines)
}

func TestLoadSitesRemoteFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := LoadSites(context.Background(), srv.URL, "", srv.Client())
	assert.Error(t, err)
}
