// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package registry_test

import (
	"testing"

	"github.com/nzmetsched/cycler/internal/registry"
	"github.com/nzmetsched/cycler/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup_NormalizesCase(t *testing.T) {
	lower, err := registry.Lookup("nzlam")
	require.NoError(t, err)
	upper, err := registry.Lookup("NZLAM")
	require.NoError(t, err)
	assert.Equal(t, lower.Class, upper.Class)
}

func TestLookup_UnknownClass(t *testing.T) {
	_, err := registry.Lookup("not_a_real_class")
	require.Error(t, err)
}

func TestDownloader_Hour00Postrequisites(t *testing.T) {
	d, err := registry.Lookup("downloader")
	require.NoError(t, err)
	assert.Equal(t, task.VariantRunaheadLimited, d.Variant)

	post, err := d.BuildPostrequisites("2011010100")
	require.NoError(t, err)
	assert.True(t, post.Exists("file obstore_2011010100.um ready"))
	assert.True(t, post.Exists("file lbc_2010123112.um ready"))
	assert.True(t, post.Exists("downloader finished for 2011010100"))
}

func TestDownloader_Hour06UsesSixHourLBC(t *testing.T) {
	d, err := registry.Lookup("downloader")
	require.NoError(t, err)

	post, err := d.BuildPostrequisites("2011010106")
	require.NoError(t, err)
	assert.True(t, post.Exists("file lbc_2011010100.um ready"))
}

func TestNzlam_Hour00RequiresLbc12(t *testing.T) {
	d, err := registry.Lookup("nzlam")
	require.NoError(t, err)

	pre, err := d.BuildPrerequisites("2011010100", false)
	require.NoError(t, err)
	assert.True(t, pre.Exists("file lbc_2010123112.um ready"))
}

func TestNzlam_Hour06RequiresLbc06(t *testing.T) {
	d, err := registry.Lookup("nzlam")
	require.NoError(t, err)

	pre, err := d.BuildPrerequisites("2011010106", false)
	require.NoError(t, err)
	assert.True(t, pre.Exists("file lbc_2011010100.um ready"))
}

func TestMos_OnlyRequiresMetAtSixAndEighteen(t *testing.T) {
	d, err := registry.Lookup("mos")
	require.NoError(t, err)

	pre00, err := d.BuildPrerequisites("2011010100", false)
	require.NoError(t, err)
	assert.Empty(t, pre00.Snapshot())

	pre06, err := d.BuildPrerequisites("2011010106", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"file met_2011010106.nc ready"}, pre06.Snapshot())
}

func TestTopnet_CatchupVsUptodateCutoff(t *testing.T) {
	d, err := registry.Lookup("topnet")
	require.NoError(t, err)
	assert.Equal(t, task.VariantFuzzyConsumer, d.Variant)

	catchingUp, err := d.BuildPrerequisites("2011010100", true)
	require.NoError(t, err)
	assert.Equal(t, []string{"file tn_<2010123113..2010123123>.nc ready"}, catchingUp.Snapshot())

	caughtUp, err := d.BuildPrerequisites("2011010100", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"file tn_<2010123101..2010123123>.nc ready"}, caughtUp.Snapshot())
}

func TestClasses_ListsAllTwelve(t *testing.T) {
	assert.Len(t, registry.Classes(), 12)
}
