package android

import (
	"testing"

	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/checks/checktest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckKotlinHeuristics(t *testing.T) {
	ctx := checktest.Context(t, map[string]string{
		"apps/android/app/src/main/java/com/acme/MainActivity.kt": `package com.acme

class MainActivity : AppCompatActivity() {
    override fun onCreate(state: Bundle?) {
        val title = findViewById<TextView>(R.id.title)
        GlobalScope.launch { load() }
        val user = repo.current!!
        // Thread.sleep(100) in a comment is ignored
        val msg = "runBlocking { } inside a string"
    }
}
`,
		"apps/android/app/src/main/java/com/acme/App.kt":      "class App : Application()\n",
		"apps/android/app/src/main/java/com/acme/HiltApp.kt":  "@HiltAndroidApp\nclass HiltApp : Application()\n",
		"apps/android/app/src/test/java/com/acme/MainTest.kt": "val a = b!!\n",
		"apps/android/app/src/main/java/com/acme/Dao.kt":      "db.execSQL(query)\n",
	}, false)

	findings, err := CheckKotlinHeuristics(ctx)
	require.NoError(t, err)

	byRule := checktest.ByRule(findings)
	main := "apps/android/app/src/main/java/com/acme/MainActivity.kt"

	require.Len(t, byRule["android.findviewbyid"], 1)
	assert.Equal(t, 5, byRule["android.findviewbyid"][0].Line)
	assert.Equal(t, "high", byRule["android.findviewbyid"][0].Severity)
	assert.Equal(t, "text-scanner", byRule["android.findviewbyid"][0].Source)

	require.Len(t, byRule["heuristics.android.globalscope.ast"], 1)
	assert.Equal(t, "heuristics:text", byRule["heuristics.android.globalscope.ast"][0].Source)

	require.Len(t, byRule["android.force_unwrapping"], 1)
	assert.Equal(t, main, byRule["android.force_unwrapping"][0].FilePath)
	assert.Equal(t, 7, byRule["android.force_unwrapping"][0].Line)

	assert.Empty(t, byRule["heuristics.android.thread-sleep.ast"])
	assert.Empty(t, byRule["heuristics.android.run-blocking.ast"])

	require.Len(t, byRule["android.di.missing_hilt_app"], 1)
	assert.Equal(t, "apps/android/app/src/main/java/com/acme/App.kt", byRule["android.di.missing_hilt_app"][0].FilePath)

	require.Len(t, byRule["android.room.raw_sql"], 1)
	assert.Equal(t, "apps/android/app/src/main/java/com/acme/Dao.kt", byRule["android.room.raw_sql"][0].FilePath)
}
