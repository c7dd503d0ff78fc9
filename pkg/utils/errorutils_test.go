package utils

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/suite"
)

type ErrorUtilsSuite struct {
	suite.Suite
}

func TestErrorUtilsSuite(t *testing.T) {
	suite.Run(t, new(ErrorUtilsSuite))
}

func (s *ErrorUtilsSuite) TestWrapIfNotNilReturnsNilForNil() {
	s.NoError(WrapIfNotNil(nil, "ignored"))
}

func (s *ErrorUtilsSuite) TestWrapIfNotNilPrefixesCallerAndContext() {
	base := errors.New("boom")

	err := WrapIfNotNil(base, "row 4")

	s.Require().Error(err)
	s.ErrorIs(err, base)
	s.Contains(err.Error(), "TestWrapIfNotNilPrefixesCallerAndContext")
	s.Contains(err.Error(), "row 4: boom")
}
