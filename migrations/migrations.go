// Package migrations embeds the SQL schema applied by `permitakaun migrate`.
package migrations

import (
	"embed"
	"sort"
)

//go:embed *.sql
var files embed.FS

// Schema returns every migration script concatenated in file-name order
func Schema() (string, error) {
	entries, err := files.ReadDir(".")
	if err != nil {
		return "", err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)

	var schema string
	for _, name := range names {
		data, err := files.ReadFile(name)
		if err != nil {
			return "", err
		}
		schema += string(data) + "\n"
	}
	return schema, nil
}
