package batch

import (
	"fmt"
	"io"
	"text/tabwriter"

	"webp-renditions/internal/transform"
)

// Probe prints the availability of every backend for each format.
func Probe(factory *transform.Factory, out io.Writer) error {
	prober := factory.Prober()
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)

	fmt.Fprintln(w, "FORMAT\tBACKEND\tAVAILABLE")
	for _, key := range factory.Keys() {
		f, _ := factory.Format(key)
		for _, s := range prober.Report(f) {
			fmt.Fprintf(w, "%s\t%s\t%t\n", f.Key, s.Backend, s.Available)
		}
		fmt.Fprintf(w, "%s\t(any)\t%t\n", f.Key, prober.IsFormatSupported(f))
	}
	return w.Flush()
}
