package testresource_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pmrtest/pmrtest/testresource"
	"github.com/pmrtest/pmrtest/testresource/reporter"
)

func TestSetDefaultReporterIsObservedByNewResources(t *testing.T) {
	var buf bytes.Buffer
	custom := reporter.NewStreamReporter(&buf)

	testresource.SetDefaultReporter(custom)
	defer testresource.SetDefaultReporter(nil)

	require.Same(t, custom, testresource.DefaultReporter())

	tr, err := testresource.New(testresource.CreateOptions{
		Name:  t.Name(),
		Flags: testresource.ResourceVerbose,
	})
	require.NoError(t, err)

	_, err = tr.Allocate(8, 0)
	require.NoError(t, err)

	require.Contains(t, buf.String(), t.Name())
}

func TestSetDefaultAllocatorReturnsPrevious(t *testing.T) {
	original := testresource.DefaultAllocator()

	first := &stubAllocator{id: 100}
	previous := testresource.SetDefaultAllocator(first)
	require.True(t, previous.IsEqual(original))

	second := &stubAllocator{id: 101}
	previous = testresource.SetDefaultAllocator(second)
	require.True(t, previous.IsEqual(first))

	testresource.SetDefaultAllocator(original)
}

func TestSetDefaultAllocatorNilRestoresRoot(t *testing.T) {
	original := testresource.DefaultAllocator()
	defer testresource.SetDefaultAllocator(original)

	testresource.SetDefaultAllocator(&stubAllocator{id: 200})
	testresource.SetDefaultAllocator(nil)

	require.True(t, testresource.DefaultAllocator().IsEqual(testresource.RootAllocator()))
}
