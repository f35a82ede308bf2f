package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"postbase/internal/db/dbtest"
	"postbase/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestViewCounter_Flush(t *testing.T) {
	gdb := dbtest.New(t)
	require.NoError(t, gdb.Create(&models.Post{ID: 1, UserID: "u1", Slug: "a", Title: "A", Type: models.PostTypePost, Status: models.PostStatusPublish}).Error)

	v := NewViewCounter(gdb, time.Hour)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v.Record(1)
		}()
	}
	wg.Wait()
	assert.Equal(t, 20, v.Pending(1))

	assert.Equal(t, 1, v.Flush(context.Background()))
	assert.Zero(t, v.Pending(1))
	assert.Zero(t, v.Flush(context.Background()))

	var post models.Post
	require.NoError(t, gdb.First(&post, 1).Error)
	assert.Equal(t, 20, post.Views)
}

func TestViewCounter_RunFlushesOnStop(t *testing.T) {
	gdb := dbtest.New(t)
	require.NoError(t, gdb.Create(&models.Post{ID: 1, UserID: "u1", Slug: "a", Title: "A", Type: models.PostTypePost, Status: models.PostStatusPublish}).Error)

	// database/sql 自己的后台 goroutine 不算
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	v := NewViewCounter(gdb, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		v.Run(ctx)
		close(done)
	}()

	v.Record(1)
	v.Record(1)
	cancel()
	<-done

	var post models.Post
	require.NoError(t, gdb.First(&post, 1).Error)
	assert.Equal(t, 2, post.Views)
}
