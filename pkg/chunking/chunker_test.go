package chunking

import (
	"strings"
	"unicode/utf8"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("ChunkText", func() {
	It("returns nothing for empty input", func() {
		Expect(ChunkText("", 300)).To(BeEmpty())
	})

	It("keeps text at or under the threshold as a single chunk", func() {
		text := strings.Repeat("b", 250)
		chunks := ChunkText(text, 300)

		Expect(chunks).To(HaveLen(1))
		Expect(chunks[0]).To(Equal(text))
	})

	It("returns nothing for whitespace-only input", func() {
		Expect(ChunkText("   \n\t  ", 300)).To(BeEmpty())
	})

	It("never emits an empty chunk", func() {
		for _, text := range []string{"", " ", "   \n\n   ", ". . .", "text. "} {
			for _, chunk := range ChunkText(text, 300) {
				Expect(chunk).NotTo(BeEmpty())
			}
		}
	})

	It("trims surrounding whitespace on the single-chunk path", func() {
		chunks := ChunkText("  short summary.  ", 300)

		Expect(chunks).To(HaveLen(1))
		Expect(chunks[0]).To(Equal("short summary."))
	})

	It("splits text over the threshold into bounded chunks", func() {
		// Four 78-character sentences plus terminators: 320 characters total.
		text := strings.Repeat(strings.Repeat("a", 78)+". ", 4)
		Expect(utf8.RuneCountInString(text)).To(Equal(320))

		chunks := ChunkText(text, 300)

		Expect(len(chunks)).To(BeNumerically(">=", 2))
		for _, chunk := range chunks {
			Expect(utf8.RuneCountInString(chunk)).To(BeNumerically("<=", 300))
		}
	})

	It("never drops or duplicates sentences", func() {
		text := "one. two! three? four。 five."
		chunks := ChunkText(text, 10)

		var words []string
		for _, chunk := range chunks {
			words = append(words, strings.Fields(chunk)...)
		}
		Expect(words).To(Equal([]string{"one", "two", "three", "four", "five"}))
	})

	It("emits a sentence longer than the threshold as one oversized chunk", func() {
		oversized := strings.Repeat("c", 400)
		text := "intro sentence. " + oversized + ". closing sentence."

		chunks := ChunkText(text, 300)

		Expect(chunks).To(ContainElement(oversized))
		for _, chunk := range chunks {
			if chunk == oversized {
				continue
			}
			Expect(utf8.RuneCountInString(chunk)).To(BeNumerically("<=", 300))
		}
	})

	It("handles the full-width sentence terminator", func() {
		text := strings.Repeat("계약은 당사자 사이의 의사표시 합치로 성립한다。", 20)
		chunks := ChunkText(text, 100)

		Expect(len(chunks)).To(BeNumerically(">", 1))
		for _, chunk := range chunks {
			Expect(utf8.RuneCountInString(chunk)).To(BeNumerically("<=", 100))
		}
	})

	It("is deterministic", func() {
		text := strings.Repeat("the court held that liability attaches. ", 30)

		first := ChunkText(text, 300)
		second := ChunkText(text, 300)

		Expect(second).To(Equal(first))
	})
})

var _ = Describe("ChunkParagraphs", func() {
	It("returns nothing for empty input", func() {
		Expect(ChunkParagraphs("", 400, 900, 80)).To(BeEmpty())
	})

	It("returns nothing for whitespace-only input", func() {
		Expect(ChunkParagraphs(" \n\n \t ", 400, 900, 80)).To(BeEmpty())
	})

	It("accumulates paragraphs up to the maximum length", func() {
		para := strings.Repeat("p", 300)
		text := para + "\n\n" + para + "\n\n" + para

		chunks := ChunkParagraphs(text, 400, 900, 80)

		Expect(chunks).To(HaveLen(1))
		Expect(chunks[0]).To(Equal(para + "\n" + para + "\n" + para))
	})

	It("starts a new chunk when the next paragraph would overflow", func() {
		para := strings.Repeat("q", 500)
		text := para + "\n\n" + para

		chunks := ChunkParagraphs(text, 400, 900, 80)

		Expect(chunks).To(Equal([]string{para, para}))
	})

	It("treats text without blank lines as a single paragraph", func() {
		text := "first line\nsecond line"
		chunks := ChunkParagraphs(text, 400, 900, 80)

		Expect(chunks).To(Equal([]string{text}))
	})

	It("folds a short trailing chunk into its predecessor", func() {
		first := strings.Repeat("a", 800)
		second := strings.Repeat("b", 850)
		tail := strings.Repeat("c", 100)

		chunks := ChunkParagraphs(first+"\n\n"+second+"\n\n"+tail, 400, 900, 80)

		Expect(chunks).To(Equal([]string{first, second + "\n" + tail}))
	})
})

var _ = Describe("Chunker", func() {
	var chunker *Chunker

	BeforeEach(func() {
		chunker = NewChunker(DefaultConfig(), nil)
	})

	Describe("BuildEntries", func() {
		It("produces contiguous zero-based chunk indices", func() {
			rec := CaseRecord{
				SerialNumber:    "228541",
				CaseName:        "손해배상(기)",
				CaseNumber:      "2021다12345",
				JudgmentSummary: strings.Repeat(strings.Repeat("가", 78)+". ", 6),
			}

			entries := chunker.BuildEntries(rec)

			Expect(len(entries)).To(BeNumerically(">=", 2))
			for i, entry := range entries {
				Expect(entry.ChunkIndex).To(Equal(i))
				Expect(entry.SourceID).To(Equal("228541"))
				Expect(entry.ChunkType).To(Equal(ChunkTypeJudgmentSummary))
				Expect(entry.Text).NotTo(BeEmpty())
			}
		})

		It("copies record fields into chunk metadata", func() {
			rec := CaseRecord{
				SerialNumber:    "1001",
				CaseName:        "근로계약 해지",
				CaseNumber:      "2020두5678",
				CourtName:       "대법원",
				JudgmentSummary: "근로계약의 해지는 정당한 사유를 요한다.",
			}

			entries := chunker.BuildEntries(rec)

			Expect(entries).To(HaveLen(1))
			meta := entries[0].Metadata
			Expect(meta.CaseName).To(Equal("근로계약 해지"))
			Expect(meta.CaseNumber).To(Equal("2020두5678"))
			Expect(meta.CourtName).To(Equal("대법원"))
			Expect(meta.Text).To(Equal(entries[0].Text))
			Expect(meta.ChunkIndex).To(Equal(0))
		})

		It("produces no entries when the summary is empty", func() {
			Expect(chunker.BuildEntries(CaseRecord{SerialNumber: "7"})).To(BeEmpty())
		})

		It("produces no entries when the summary is whitespace only", func() {
			rec := CaseRecord{SerialNumber: "8", JudgmentSummary: "   \n\t "}
			Expect(chunker.BuildEntries(rec)).To(BeEmpty())
		})
	})
})
