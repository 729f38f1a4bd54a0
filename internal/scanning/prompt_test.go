package scanning

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Instructions", func() {
	DescribeTable("ParsePromptMode",
		func(input string, expected PromptMode, ok bool) {
			mode, err := ParsePromptMode(input)
			if !ok {
				Expect(err).To(HaveOccurred())
				return
			}
			Expect(err).NotTo(HaveOccurred())
			Expect(mode).To(Equal(expected))
		},
		Entry("system-user", "system-user", PromptSystemUser, true),
		Entry("single, mixed case", " Single ", PromptSingle, true),
		Entry("unknown", "three-messages", PromptMode(""), false),
	)

	DescribeTable("ParseResponseFormat",
		func(input string, expected ResponseFormat, ok bool) {
			format, err := ParseResponseFormat(input)
			if !ok {
				Expect(err).To(HaveOccurred())
				return
			}
			Expect(err).NotTo(HaveOccurred())
			Expect(format).To(Equal(expected))
		},
		Entry("json_object", "json_object", FormatJSONObject, true),
		Entry("text", "TEXT", FormatText, true),
		Entry("unknown", "xml", ResponseFormat(""), false),
	)

	It("asks for the cannot_read sentinel", func() {
		i := DefaultInstructions(PromptSystemUser, FormatJSONObject)
		Expect(i.System).To(ContainSubstring("cannot_read"))
		Expect(i.User).To(ContainSubstring("cannot_read"))
		Expect(i.System).To(ContainSubstring("nomArticle"))
	})

	It("joins system and user text for a single message", func() {
		i := Instructions{System: "rules", User: "go"}
		Expect(i.combined()).To(Equal("rules\n\ngo"))
		Expect(Instructions{User: "go"}.combined()).To(Equal("go"))
	})
})
