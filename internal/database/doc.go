/*
包 database 提供基于 GORM 的数据库连接池管理，供 SQL 检查点存储使用。

# 核心类型

  - PoolManager：持有 GORM DB 实例与底层 sql.DB，
    提供 DB()、Ping()、WithTransaction()、Close()。
  - PoolConfig：最大空闲连接数、最大打开连接数与连接生命周期。

Open 根据 config.DatabaseConfig 选择方言：postgres、mysql，
以及纯 Go 的 sqlite（github.com/glebarez/sqlite）。
*/
package database
