package envmap

import (
	"bytes"
	"fmt"

	"github.com/achilleasa/skylight/types"
	"github.com/olekukonko/tablewriter"
)

// Stats returns a table summarizing an environment map and its alias table.
func Stats(img *Image, table *AliasTable) string {
	var buf bytes.Buffer
	tw := tablewriter.NewWriter(&buf)
	tw.SetAlignment(tablewriter.ALIGN_LEFT)
	tw.SetAutoFormatHeaders(false)
	tw.SetHeader([]string{"Property", "Value"})

	kind := "LDR"
	if img.HDR {
		kind = "HDR"
	}
	tw.Append([]string{"Source", img.Source})
	tw.Append([]string{"Dimensions", fmt.Sprintf("%dx%d", img.Width, img.Height)})
	tw.Append([]string{"Dynamic range", kind})
	tw.Append([]string{"Texel data", types.FmtSize(img.Texels)})

	if table != nil {
		maxIndex := 0
		for i, pdf := range table.Pdf {
			if pdf > table.Pdf[maxIndex] {
				maxIndex = i
			}
		}

		tw.Append([]string{"Alias table", types.FmtSize(table.Pdf, table.AliasPdf, table.AliasIndex)})
		tw.Append([]string{"Pdf checksum", fmt.Sprintf("%.6f", table.Checksum)})
		tw.Append([]string{"Brightest pixel", fmt.Sprintf("(%d, %d) p=%.3e", maxIndex%table.Width, maxIndex/table.Width, table.Pdf[maxIndex])})
	}

	tw.Render()
	return buf.String()
}
