// converter is a mock content-blocker converter for local runs of the updater.
// It reads the rules from stdin and writes the conversion report to stdout in
// the format of the real converter.  Only the network rules are converted, the
// other rules are counted as advanced.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"regexp"
	"strings"

	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/golibs/osutil"
	"github.com/AdguardTeam/urlfilter/rules"
)

// report is the conversion report.
type report struct {
	Converted                      string `json:"converted"`
	AdvancedBlocking               string `json:"advancedBlocking,omitempty"`
	TotalConvertedCount            int    `json:"totalConvertedCount"`
	ConvertedCount                 int    `json:"convertedCount"`
	ErrorsCount                    int    `json:"errorsCount"`
	AdvancedBlockingConvertedCount int    `json:"advancedBlockingConvertedCount"`
	OverLimit                      bool   `json:"overLimit"`
}

// entry is a single item of a content-blocker document.
type entry struct {
	Trigger map[string]string `json:"trigger"`
	Action  map[string]string `json:"action"`
}

func main() {
	l := slogutil.New(&slogutil.Config{
		Output: os.Stderr,
		Format: slogutil.FormatText,
		Level:  slog.LevelInfo,
	})

	limit := flag.Int("limit", 150_000, "maximum number of rules in the document")
	advanced := flag.Bool("advancedBlocking", false, "produce the advanced-blocking document")
	flag.Parse()

	rep, err := convert(bufio.NewScanner(os.Stdin), *limit, *advanced)
	if err != nil {
		l.Error("converting", slogutil.KeyError, err)

		os.Exit(osutil.ExitCodeFailure)
	}

	err = json.NewEncoder(os.Stdout).Encode(rep)
	if err != nil {
		l.Error("writing report", slogutil.KeyError, err)

		os.Exit(osutil.ExitCodeFailure)
	}
}

// convert converts the rules read from s.
func convert(s *bufio.Scanner, limit int, advanced bool) (rep *report, err error) {
	rep = &report{}

	var blocking, advancedEntries []*entry
	for s.Scan() {
		text := strings.TrimSpace(s.Text())
		if text == "" || strings.HasPrefix(text, "!") {
			continue
		}

		rep.TotalConvertedCount++

		nr, nrErr := rules.NewNetworkRule(text, 0)
		if nrErr != nil {
			advancedEntries = append(advancedEntries, &entry{
				Trigger: map[string]string{"url-filter": ".*"},
				Action:  map[string]string{"type": "css-inject", "rule": text},
			})

			continue
		}

		if len(blocking) >= limit {
			rep.OverLimit = true

			continue
		}

		action := "block"
		if nr.Whitelist {
			action = "ignore-previous-rules"
		}

		blocking = append(blocking, &entry{
			Trigger: map[string]string{"url-filter": regexp.QuoteMeta(nr.Text())},
			Action:  map[string]string{"type": action},
		})
	}

	if err = s.Err(); err != nil {
		return nil, err
	}

	rep.ConvertedCount = len(blocking)
	rep.Converted, err = marshal(blocking)
	if err != nil {
		return nil, err
	}

	if advanced {
		rep.AdvancedBlockingConvertedCount = len(advancedEntries)
		rep.AdvancedBlocking, err = marshal(advancedEntries)
	}

	return rep, err
}

// marshal returns the JSON document with entries.
func marshal(entries []*entry) (doc string, err error) {
	if len(entries) == 0 {
		return "[]", nil
	}

	b, err := json.Marshal(entries)

	return string(b), err
}
