package results

import (
	"fmt"
	"path/filepath"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/xuri/excelize/v2"
)

var _ = Describe("XLSXSink", func() {
	var (
		path string
		sink *XLSXSink
	)

	BeforeEach(func() {
		path = filepath.Join(GinkgoT().TempDir(), "invoices.xlsx")
		sink = NewXLSXSink(path)
	})

	readRows := func() [][]string {
		f, err := excelize.OpenFile(path)
		Expect(err).NotTo(HaveOccurred())
		defer f.Close()
		rows, err := f.GetRows("Invoices")
		Expect(err).NotTo(HaveOccurred())
		return rows
	}

	When("the workbook does not exist yet", func() {
		It("creates it with a header row and the first data row", func() {
			Expect(sink.Append(NewSuccess(testJob(1), testRecord()))).To(Succeed())

			rows := readRows()
			Expect(rows).To(HaveLen(2))
			Expect(rows[0][0]).To(Equal("Job ID"))
			Expect(rows[0][3]).To(Equal("Invoice Number"))
			Expect(rows[1][0]).To(Equal("1"))
			Expect(rows[1][3]).To(Equal("INV-2026-0001"))
			Expect(rows[1][4]).To(Equal("Acme Office Supply"))
			Expect(rows[1][7]).To(Equal("CNY"))
		})
	})

	When("the workbook already exists", func() {
		It("appends below the last row", func() {
			Expect(sink.Append(NewSuccess(testJob(1), testRecord()))).To(Succeed())
			Expect(sink.Append(NewFailure(testJob(2), "model timed out"))).To(Succeed())

			rows := readRows()
			Expect(rows).To(HaveLen(3))
			Expect(rows[2][0]).To(Equal("2"))
			Expect(rows[2][2]).To(Equal("failed"))
			Expect(rows[2][9]).To(Equal("model timed out"))
		})
	})

	When("a failure result has no record", func() {
		It("leaves the invoice columns blank", func() {
			Expect(sink.Append(NewFailure(testJob(1), "bad image"))).To(Succeed())

			rows := readRows()
			Expect(rows[1][2]).To(Equal("failed"))
			// Columns D-I are never written for failures.
			Expect(rows[1][3]).To(BeEmpty())
		})
	})

	When("several workers append at once", func() {
		It("produces one intact row per result", func() {
			const n = 8
			var wg sync.WaitGroup
			errs := make([]error, n)
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					record := testRecord()
					record.InvoiceNumber = fmt.Sprintf("INV-%03d", i+1)
					errs[i] = sink.Append(NewSuccess(testJob(uint64(i+1)), record))
				}(i)
			}
			wg.Wait()

			for _, err := range errs {
				Expect(err).NotTo(HaveOccurred())
			}

			rows := readRows()
			Expect(rows).To(HaveLen(n + 1))
			seen := map[string]bool{}
			for _, row := range rows[1:] {
				seen[row[3]] = true
			}
			Expect(seen).To(HaveLen(n))
		})
	})
})
